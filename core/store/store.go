/*Package store implements a small document store on top of postgres.

Each collection is one table with a uuid primary key and a JSONB
document column. Operations mirror the document-database verbs the
frontend expects: insert, find with a containment filter, find-one,
and keyed update/delete, with mongo-compatible result shapes.
*/
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/google/uuid"

	"github.com/bistro-tech/bistro/core/csql"
	"github.com/bistro-tech/bistro/core/logger"
)

// Document is a schemaless JSON document. Stored documents carry their
// id as "_id" (string uuid).
type Document map[string]interface{}

// InsertResult is the outcome of an insert. InsertedID is null when the
// insert was downgraded to a no-op (duplicate user email).
type InsertResult struct {
	Message    string  `json:"message,omitempty"`
	InsertedID *string `json:"insertedId"`
}

// UpdateResult is the outcome of a keyed update.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult is the outcome of a keyed delete.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Collection is a keyed set of JSON documents. All operations are safe
// for concurrent use; they map to single driver calls.
type Collection interface {
	// Insert stores the document under a fresh id and returns that id.
	Insert(ctx context.Context, doc Document) (InsertResult, error)
	// Find returns all documents matching the filter, oldest first.
	// A nil or empty filter matches everything.
	Find(ctx context.Context, filter Document) ([]Document, error)
	// FindOne returns the first document matching the filter, or nil
	// if there is none. Absence is not an error.
	FindOne(ctx context.Context, filter Document) (Document, error)
	// FindByID returns the document with the given id, or nil.
	FindByID(ctx context.Context, id uuid.UUID) (Document, error)
	// UpdateByID merges the top-level fields of set into the stored
	// document.
	UpdateByID(ctx context.Context, id uuid.UUID, set Document) (UpdateResult, error)
	// DeleteByID removes the document with the given id.
	DeleteByID(ctx context.Context, id uuid.UUID) (DeleteResult, error)
}

// Store provides the four bistro collections.
type Store struct {
	Users   Collection
	Menu    Collection
	Reviews Collection
	Cart    Collection
}

// MustNew creates the collection tables in the database's schema (if
// they do not exist yet) and returns the store. It panics on database
// errors; the store is created once at startup.
func MustNew(db *csql.DB) *Store {
	return &Store{
		Users:   mustCollection(db, "users", "email"),
		Menu:    mustCollection(db, "menu", ""),
		Reviews: mustCollection(db, "reviews", ""),
		Cart:    mustCollection(db, "cart", ""),
	}
}

type collection struct {
	db       *csql.DB
	resource string
}

func mustCollection(db *csql.DB, resource string, uniqueProperty string) *collection {
	nillog := logger.FromContext(nil)
	nillog.Debugln("create collection:", resource)

	createQuery := fmt.Sprintf(`CREATE table IF NOT EXISTS %s."%s" `+
		`(document_id uuid NOT NULL PRIMARY KEY, `+
		`document jsonb NOT NULL, `+
		`timestamp timestamp NOT NULL DEFAULT now());`, db.Schema, resource)
	if _, err := db.Exec(createQuery); err != nil {
		panic(fmt.Errorf("cannot create collection %s: %w", resource, err))
	}

	if uniqueProperty != "" {
		indexQuery := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s_%s" ON %s."%s" ((document->>'%s'));`,
			resource, uniqueProperty, db.Schema, resource, uniqueProperty)
		if _, err := db.Exec(indexQuery); err != nil {
			panic(fmt.Errorf("cannot create unique index on %s.%s: %w", resource, uniqueProperty, err))
		}
	}
	return &collection{db: db, resource: resource}
}

func (c *collection) Insert(ctx context.Context, doc Document) (InsertResult, error) {
	id := uuid.New()
	doc["_id"] = id.String()
	data, err := json.Marshal(doc)
	if err != nil {
		return InsertResult{}, err
	}
	query := fmt.Sprintf(`INSERT INTO %s."%s" (document_id, document) VALUES ($1, $2::jsonb);`,
		c.db.Schema, c.resource)
	if _, err := c.db.ExecContext(ctx, query, id, string(data)); err != nil {
		return InsertResult{}, err
	}
	insertedID := id.String()
	return InsertResult{InsertedID: &insertedID}, nil
}

func (c *collection) Find(ctx context.Context, filter Document) ([]Document, error) {
	query := fmt.Sprintf(`SELECT document FROM %s."%s"`, c.db.Schema, c.resource)
	var args []interface{}
	if len(filter) > 0 {
		data, err := json.Marshal(filter)
		if err != nil {
			return nil, err
		}
		query += ` WHERE document @> $1::jsonb`
		args = append(args, string(data))
	}
	query += ` ORDER BY timestamp;`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

func (c *collection) FindOne(ctx context.Context, filter Document) (Document, error) {
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT document FROM %s."%s" WHERE document @> $1::jsonb ORDER BY timestamp LIMIT 1;`,
		c.db.Schema, c.resource)
	return c.queryOne(ctx, query, string(data))
}

func (c *collection) FindByID(ctx context.Context, id uuid.UUID) (Document, error) {
	query := fmt.Sprintf(`SELECT document FROM %s."%s" WHERE document_id = $1;`,
		c.db.Schema, c.resource)
	return c.queryOne(ctx, query, id)
}

func (c *collection) queryOne(ctx context.Context, query string, arg interface{}) (Document, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *collection) UpdateByID(ctx context.Context, id uuid.UUID, set Document) (UpdateResult, error) {
	// a nil map would marshal to null and null out the whole document
	if set == nil {
		set = Document{}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return UpdateResult{}, err
	}
	// jsonb concatenation replaces top-level fields only, like $set
	query := fmt.Sprintf(`UPDATE %s."%s" SET document = document || $2::jsonb WHERE document_id = $1;`,
		c.db.Schema, c.resource)
	result, err := c.db.ExecContext(ctx, query, id, string(data))
	if err != nil {
		return UpdateResult{}, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{MatchedCount: count, ModifiedCount: count}, nil
}

func (c *collection) DeleteByID(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	query := fmt.Sprintf(`DELETE FROM %s."%s" WHERE document_id = $1;`, c.db.Schema, c.resource)
	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return DeleteResult{}, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{DeletedCount: count}, nil
}

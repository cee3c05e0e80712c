package backend

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/store"
)

// userRoles adapts the users collection to access.RoleReader.
type userRoles struct {
	users store.Collection
}

func (u userRoles) ReadRole(ctx context.Context, email string) (access.Role, bool, error) {
	doc, err := u.users.FindOne(ctx, store.Document{"email": email})
	if err != nil {
		return access.RoleDefault, false, err
	}
	if doc == nil {
		return access.RoleDefault, false, nil
	}
	role, _ := doc["role"].(string)
	return access.ParseRole(role), true, nil
}

func (b *Backend) handleUsers(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("  handle route: /users GET,POST")
	nillog.Debugln("  handle route: /users/admin/{email} GET")
	nillog.Debugln("  handle route: /users/admin/{id} PATCH")
	nillog.Debugln("  handle route: /users/{id} DELETE")

	router.Handle("/users", b.adminOnly(compressed(b.usersList))).Methods(http.MethodGet)
	router.HandleFunc("/users", b.usersCreate).Methods(http.MethodPost)
	router.Handle("/users/admin/{email}", b.authenticated(http.HandlerFunc(b.usersAdminStatus))).Methods(http.MethodGet)
	router.Handle("/users/admin/{id}", b.adminOnly(http.HandlerFunc(b.usersGrantAdmin))).Methods(http.MethodPatch)
	router.Handle("/users/{id}", b.adminOnly(http.HandlerFunc(b.usersDelete))).Methods(http.MethodDelete)
}

func (b *Backend) usersList(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	documents, err := b.store.Users.Find(r.Context(), nil)
	if err != nil {
		writeStoreError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

// usersCreate is idempotent by email: re-submitting an existing email
// returns an "already exists" marker with a null insertedId instead of
// creating a duplicate.
func (b *Backend) usersCreate(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	doc, ok := readDocument(w, r)
	if !ok {
		return
	}
	email, _ := doc["email"].(string)
	if email == "" {
		access.WriteMessage(w, http.StatusBadRequest, "email is required")
		return
	}

	existing, err := b.store.Users.FindOne(r.Context(), store.Document{"email": email})
	if err != nil {
		writeStoreError(w, r, "look up user", err)
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, store.InsertResult{Message: "user already exists"})
		return
	}

	result, err := b.store.Users.Insert(r.Context(), doc)
	if err != nil {
		writeStoreError(w, r, "create user", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// usersAdminStatus reports whether the given email belongs to an
// admin. Callers may only ask about themselves: the path email must
// match the authenticated identity, anything else is forbidden
// regardless of actual role.
func (b *Backend) usersAdminStatus(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	email := mux.Vars(r)["email"]
	identity := access.IdentityFromContext(r.Context())
	if identity == nil || identity.Email != email {
		access.WriteMessage(w, http.StatusForbidden, "forbidden access")
		return
	}

	doc, err := b.store.Users.FindOne(r.Context(), store.Document{"email": email})
	if err != nil {
		writeStoreError(w, r, "look up user", err)
		return
	}
	isAdmin := false
	if doc != nil {
		role, _ := doc["role"].(string)
		isAdmin = access.ParseRole(role) == access.RoleAdmin
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": isAdmin})
}

// usersGrantAdmin promotes the user with the given id to the admin role.
func (b *Backend) usersGrantAdmin(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	result, err := b.store.Users.UpdateByID(r.Context(), id, store.Document{"role": string(access.RoleAdmin)})
	if err != nil {
		writeStoreError(w, r, "grant admin role", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *Backend) usersDelete(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	result, err := b.store.Users.DeleteByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

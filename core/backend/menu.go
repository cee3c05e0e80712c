package backend

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/store"
)

const menuItemSchemaID = "https://bistro-tech.github.io/schemas/menu-item.json"

var menuItemSchema = `{
	"$id": "` + menuItemSchemaID + `",
	"type": "object",
	"required": ["name", "price"],
	"properties": {
		"name":     { "type": "string", "minLength": 1 },
		"price":    { "type": "number", "minimum": 0 },
		"category": { "type": "string" },
		"recipe":   { "type": "string" },
		"image":    { "type": "string" }
	}
}`

// Menu routes. Creation and deletion require the admin role; reading
// is open. The update route is open as well, mirroring the frontend's
// current expectations.
func (b *Backend) handleMenu(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("  handle route: /menu GET,POST")
	nillog.Debugln("  handle route: /menu/{id} GET,PATCH,DELETE")

	router.Handle("/menu", compressed(b.menuList)).Methods(http.MethodGet)
	router.Handle("/menu", b.adminOnly(http.HandlerFunc(b.menuCreate))).Methods(http.MethodPost)
	router.HandleFunc("/menu/{id}", b.menuGet).Methods(http.MethodGet)
	router.HandleFunc("/menu/{id}", b.menuUpdate).Methods(http.MethodPatch)
	router.Handle("/menu/{id}", b.adminOnly(http.HandlerFunc(b.menuDelete))).Methods(http.MethodDelete)
}

func (b *Backend) menuList(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	documents, err := b.store.Menu.Find(r.Context(), nil)
	if err != nil {
		writeStoreError(w, r, "list menu", err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func (b *Backend) menuGet(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	doc, err := b.store.Menu.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "read menu item", err)
		return
	}
	// absent documents respond with null, they are not an error
	writeJSON(w, http.StatusOK, doc)
}

func (b *Backend) menuCreate(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := b.jsonValidator.ValidateString(string(body), menuItemSchemaID); err != nil {
		access.WriteMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var doc store.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := b.store.Menu.Insert(r.Context(), doc)
	if err != nil {
		writeStoreError(w, r, "create menu item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *Backend) menuUpdate(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	doc, ok := readDocument(w, r)
	if !ok {
		return
	}
	delete(doc, "_id") // the document keeps its identity

	result, err := b.store.Menu.UpdateByID(r.Context(), id, doc)
	if err != nil {
		writeStoreError(w, r, "update menu item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *Backend) menuDelete(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	result, err := b.store.Menu.DeleteByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "delete menu item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

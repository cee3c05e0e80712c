package backend

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/store"
)

// Cart routes are scoped by the email query parameter the caller
// supplies, not by the authenticated identity. Any caller may read or
// mutate any cart; the frontend relies on this, so it stays open here.
func (b *Backend) handleCart(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("  handle route: /carts GET")
	nillog.Debugln("  handle route: /cart POST")
	nillog.Debugln("  handle route: /cart/{id} DELETE")

	router.Handle("/carts", compressed(b.cartsList)).Methods(http.MethodGet)
	router.HandleFunc("/cart", b.cartCreate).Methods(http.MethodPost)
	router.HandleFunc("/cart/{id}", b.cartDelete).Methods(http.MethodDelete)
}

func (b *Backend) cartsList(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	email := r.URL.Query().Get("email")
	documents, err := b.store.Cart.Find(r.Context(), store.Document{"email": email})
	if err != nil {
		writeStoreError(w, r, "list cart items", err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func (b *Backend) cartCreate(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	doc, ok := readDocument(w, r)
	if !ok {
		return
	}
	result, err := b.store.Cart.Insert(r.Context(), doc)
	if err != nil {
		writeStoreError(w, r, "create cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *Backend) cartDelete(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid uuid")
		return
	}
	result, err := b.store.Cart.DeleteByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "delete cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

/*Package backend implements the bistro REST backend: CRUD routes over
the users, menu, reviews and cart collections, a token issuing route,
and the authentication/authorization middleware chain on the routes
that need it.
*/
package backend

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/schema"
	"github.com/bistro-tech/bistro/core/store"
)

// Backend is the bistro REST backend.
type Backend struct {
	store         *store.Store
	tokens        *access.TokenService
	router        *mux.Router
	jsonValidator *schema.Validator

	authenticate mux.MiddlewareFunc
	requireAdmin mux.MiddlewareFunc
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Store holds the document collections. This is mandatory.
	Store *store.Store
	// Tokens issues and verifies session tokens. This is mandatory.
	Tokens *access.TokenService
	// Router is a mux router. This is mandatory.
	Router *mux.Router
}

// New realizes the actual backend. It adds all routes to the router,
// with the middleware chain authentication -> admin check on the
// routes that require it.
func New(bb *Builder) *Backend {
	if bb.Store == nil {
		panic("Store is missing")
	}
	if bb.Tokens == nil {
		panic("Tokens is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}

	b := &Backend{
		store:         bb.Store,
		tokens:        bb.Tokens,
		router:        bb.Router,
		jsonValidator: schema.MustNewValidator([]string{menuItemSchema}),
	}
	b.authenticate = access.NewAuthenticationMiddleware(bb.Tokens)
	b.requireAdmin = access.NewAdminMiddleware(userRoles{users: bb.Store.Users})

	b.handleCORS()
	b.handleRoutes(b.router)
	return b
}

func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("backend: handle routes")

	b.handleHealth(router)
	b.handleSessions(router)
	b.handleUsers(router)
	b.handleMenu(router)
	b.handleReviews(router)
	b.handleCart(router)
}

// adminOnly wraps a handler with the full middleware chain: bearer
// token authentication followed by the admin role check.
func (b *Backend) adminOnly(h http.Handler) http.Handler {
	return b.authenticate(b.requireAdmin(h))
}

// authenticated wraps a handler with bearer token authentication only.
func (b *Backend) authenticated(h http.Handler) http.Handler {
	return b.authenticate(h)
}

// compressed wraps a handler with the gzip compression handler, for
// the list routes that can return large payloads.
func compressed(h http.HandlerFunc) http.Handler {
	return handlers.CompressHandler(h)
}

func (b *Backend) handleHealth(router *mux.Router) {
	logger.FromContext(nil).Debugln("  handle route: / GET")
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("bistro server is running"))
	}).Methods(http.MethodGet)
}

func (b *Backend) handleSessions(router *mux.Router) {
	logger.FromContext(nil).Debugln("  handle route: /jwt POST")
	router.HandleFunc("/jwt", b.sessionsCreate).Methods(http.MethodPost)
}

// sessionsCreate issues a session token for the identity claims in the
// request body. The route is open: possession of a token proves
// nothing but knowledge of an email, authorization happens against the
// stored user record on every admin route.
func (b *Backend) sessionsCreate(w http.ResponseWriter, r *http.Request) {
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

	token, err := b.tokens.Issue(access.Identity{Email: email})
	if err != nil {
		rlog.WithError(err).Errorln("cannot issue token")
		access.WriteMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, object interface{}) {
	data, err := json.Marshal(object)
	if err != nil {
		access.WriteMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// readDocument decodes the request body into a document. On failure it
// writes a 400 response and returns false.
func readDocument(w http.ResponseWriter, r *http.Request) (store.Document, bool) {
	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		access.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return doc, true
}

// writeStoreError translates a database failure into a 500 response.
func writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	logger.FromContext(r.Context()).WithError(err).Errorln("cannot", what)
	access.WriteMessage(w, http.StatusInternalServerError, "internal server error")
}

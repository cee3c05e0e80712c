package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/logger"
)

// Reviews are read-only through the REST interface; they are loaded
// into the collection out of band.
func (b *Backend) handleReviews(router *mux.Router) {
	logger.FromContext(nil).Debugln("  handle route: /reviews GET")

	router.Handle("/reviews", compressed(b.reviewsList)).Methods(http.MethodGet)
}

func (b *Backend) reviewsList(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Debugln("called route for", r.URL, r.Method)

	documents, err := b.store.Reviews.Find(r.Context(), nil)
	if err != nil {
		writeStoreError(w, r, "list reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

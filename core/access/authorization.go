package access

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/logger"
)

// Role is the coarse permission tier stored on a user record.
type Role string

const (
	// RoleDefault is the tier of every user without an explicit role.
	RoleDefault Role = "default"
	// RoleAdmin permits user management and menu mutation.
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role string to a Role. Anything that is not
// exactly "admin" is the default tier, including the empty string.
func ParseRole(s string) Role {
	switch s {
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleDefault
	}
}

// RoleReader looks up the stored role for an email address. The second
// return value reports whether a user record exists at all.
type RoleReader interface {
	ReadRole(ctx context.Context, email string) (Role, bool, error)
}

// NewAdminMiddleware returns a middleware handler that permits the
// request only if the authenticated identity's user record carries the
// admin role.
//
// It must run after the authentication middleware. Failure is distinct
// from authentication failure: http.StatusForbidden, so callers can
// tell "not logged in" from "logged in but insufficient privilege".
// A missing user record counts as insufficient privilege, not as an
// error.
func NewAdminMiddleware(roles RoleReader) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rlog := logger.FromContext(r.Context())

			identity := IdentityFromContext(r.Context())
			if identity == nil {
				// the route was wired without the authentication middleware
				rlog.Errorln("admin check without authenticated identity")
				WriteMessage(w, http.StatusForbidden, "forbidden access")
				return
			}

			role, ok, err := roles.ReadRole(r.Context(), identity.Email)
			if err != nil {
				rlog.WithError(err).Errorln("cannot read role for", identity.Email)
				WriteMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !ok || role != RoleAdmin {
				WriteMessage(w, http.StatusForbidden, "forbidden access")
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

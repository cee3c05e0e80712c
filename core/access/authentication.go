/*Package access provides the token service and the middleware chain
that guards protected routes: bearer-token authentication followed by
an admin role check.
*/
package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/bistro-tech/bistro/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const contextKeyIdentity contextKey = "_identity_"

// ContextWithIdentity returns a new context with this identity added to it
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves the authenticated identity from the
// context, or nil if the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(contextKeyIdentity).(*Identity)
	if ok {
		return identity
	}
	return nil
}

// WriteMessage writes a JSON object {"message": ...} with the given status.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	data, _ := json.Marshal(map[string]string{"message": message})
	w.Write(data)
}

// NewAuthenticationMiddleware returns a middleware handler that requires
// a valid bearer token on every request it wraps.
//
// Tokens are accepted as "Authorization: Bearer" header; a bare token
// without the Bearer prefix is tolerated. A missing header fails
// immediately with http.StatusUnauthorized, before the token service is
// consulted. A present but unverifiable token fails with the same
// status. On success the decoded identity is stored in the request
// context, where IdentityFromContext and the authorization middleware
// find it.
//
// The raw header value is a credential and is never logged; only its
// presence is, at debug level.
func NewAuthenticationMiddleware(tokens *TokenService) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rlog := logger.FromContext(r.Context())

			bearer := r.Header.Get("Authorization")
			if len(bearer) == 0 || bearer == "null" {
				WriteMessage(w, http.StatusUnauthorized, "unauthorized access")
				return
			}
			rlog.Debugln("bearer token received")

			tokenString := bearer
			if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
				tokenString = bearer[7:]
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				rlog.Debugln("token rejected:", err)
				WriteMessage(w, http.StatusUnauthorized, "unauthorized access")
				return
			}

			// now that we have authenticated the requester, we store their identity in the context
			ctx := ContextWithIdentity(r.Context(), identity)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, identity.Email)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

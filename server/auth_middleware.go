package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-server/auth"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the authenticated auth.Identity
const ContextKeyIdentity ContextKey = "identity"

// RequireAuth validates the bearer session token and stores the caller's
// identity in the request context. It does not extend the session; clients
// do that explicitly through the refresh route.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="session"`)
				writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
				return
			}

			identity, err := s.auth.Authenticate(r.Context(), raw)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, *identity)
			next(w, r.WithContext(ctx))
		}
	}
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(auth.Identity)
	return id, ok
}

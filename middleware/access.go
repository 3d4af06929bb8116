package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/utils"
)

// Access guards for handlers that consume the identity set by IdentityFilter.
// They must be mounted after IdentityFilter.Handler.
type Access struct {
	logger *zap.Logger
}

// NewAccess creates a new Access
func NewAccess(logger *zap.Logger) *Access {
	return &Access{logger: logger}
}

// RequireIdentity rejects requests without an identity with 401
func (a *Access) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			a.logger.Debug("identity required",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is a middleware that requires a specific role. Requests
// without an identity get 401, identities lacking the role get 403.
func (a *Access) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity, ok := IdentityFromContext(ctx)
			if !ok {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !identity.HasRole(role) {
				a.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("username", identity.Username),
					zap.String("required_role", role),
					zap.Strings("roles", identity.Roles))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

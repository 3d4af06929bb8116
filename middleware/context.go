package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/upb/coffee-main-api/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// identityKey holds the *models.Identity resolved for the request
	identityKey contextKey = "identity"

	// filterAppliedKey marks a request the identity filter already processed
	filterAppliedKey contextKey = "identity_filter_applied"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// WithIdentity returns a context carrying identity
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// ClearIdentity returns a context in which no identity is visible, even if
// a parent context carried one.
func ClearIdentity(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityKey, (*models.Identity)(nil))
}

// IdentityFromContext returns the identity established for the request
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func identityFilterApplied(ctx context.Context) bool {
	applied, _ := ctx.Value(filterAppliedKey).(bool)
	return applied
}

func markIdentityFilterApplied(ctx context.Context) context.Context {
	return context.WithValue(ctx, filterAppliedKey, true)
}

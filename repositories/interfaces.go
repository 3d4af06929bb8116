package repositories

import (
	"context"
	"errors"

	"github.com/upb/coffee-main-api/models"
)

// ErrNotFound is returned by a CredentialStore when no account exists for a username
var ErrNotFound = errors.New("account not found")

// CredentialStore resolves stored credentials by username
type CredentialStore interface {
	// Resolve returns the account for username, or ErrNotFound.
	// Implementations must honor ctx cancellation.
	Resolve(ctx context.Context, username string) (*models.Account, error)
}

// AuthEventRepository persists authentication audit events
type AuthEventRepository interface {
	// Insert inserts a new auth event
	Insert(ctx context.Context, event *models.AuthEvent) error

	// ListRecent returns up to limit events, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error)
}

// Repositories aggregates the repositories used by the service
type Repositories struct {
	Credentials CredentialStore
	AuthEvents  AuthEventRepository
}

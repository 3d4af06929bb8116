package memory

import (
	"context"
	"fmt"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/repositories"
)

const (
	// DefaultUsername is the account seeded by NewDefaultCredentialStore
	DefaultUsername = "testuser"

	// DefaultPasswordHash is the bcrypt hash seeded for DefaultUsername when
	// no override is configured
	DefaultPasswordHash = "$2a$10$jkEZ81VOW0aFAUYeo6LPPukp/gbOMeuHyll0Q.crkyBAeJE75oDnK"
)

// CredentialStore is an immutable in-memory credential store.
// It is safe for concurrent use because nothing mutates it after construction.
type CredentialStore struct {
	accounts map[string]models.Account
}

// NewCredentialStore creates a store holding the given accounts.
// Blank or duplicate usernames are rejected.
func NewCredentialStore(accounts ...*models.Account) (*CredentialStore, error) {
	m := make(map[string]models.Account, len(accounts))
	for _, account := range accounts {
		if account == nil || account.Username == "" {
			return nil, fmt.Errorf("account username must not be blank")
		}
		if _, exists := m[account.Username]; exists {
			return nil, fmt.Errorf("duplicate account: %s", account.Username)
		}
		m[account.Username] = copyAccount(account)
	}
	return &CredentialStore{accounts: m}, nil
}

// NewDefaultCredentialStore seeds the single testuser account with role USER.
// An empty passwordHash falls back to DefaultPasswordHash.
func NewDefaultCredentialStore(passwordHash string) *CredentialStore {
	if passwordHash == "" {
		passwordHash = DefaultPasswordHash
	}
	account := models.NewAccount(DefaultUsername, passwordHash, models.RoleUser)
	return &CredentialStore{accounts: map[string]models.Account{
		DefaultUsername: copyAccount(account),
	}}
}

// Resolve returns a copy of the account for username
func (s *CredentialStore) Resolve(ctx context.Context, username string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	account, ok := s.accounts[username]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := copyAccount(&account)
	return &out, nil
}

// Len returns the number of accounts in the store
func (s *CredentialStore) Len() int {
	return len(s.accounts)
}

func copyAccount(a *models.Account) models.Account {
	out := *a
	out.Roles = append([]string(nil), a.Roles...)
	return out
}

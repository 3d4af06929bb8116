package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/repositories"
)

// CredentialRepository implements repositories.CredentialStore on PostgreSQL
type CredentialRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, logger *zap.Logger) *CredentialRepository {
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

// Resolve retrieves the account for username
func (r *CredentialRepository) Resolve(ctx context.Context, username string) (*models.Account, error) {
	query := `
		SELECT username, password_hash, roles, enabled, locked
		FROM credentials
		WHERE username = $1
	`

	var (
		name    string
		hash    string
		roles   []string
		enabled bool
		locked  bool
	)

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&name,
		&hash,
		pq.Array(&roles),
		&enabled,
		&locked,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	account := models.NewAccount(name, hash, roles...)
	account.Enabled = enabled
	account.Locked = locked
	return account, nil
}

// Upsert stores an account, replacing any existing row for the username.
// Used to provision credentials; there is no user management API.
func (r *CredentialRepository) Upsert(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO credentials (username, password_hash, roles, enabled, locked)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			roles = EXCLUDED.roles,
			enabled = EXCLUDED.enabled,
			locked = EXCLUDED.locked,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.PasswordHash,
		pq.Array(account.Roles),
		account.Enabled,
		account.Locked,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}

	r.logger.Debug("credentials stored", zap.String("username", account.Username))
	return nil
}

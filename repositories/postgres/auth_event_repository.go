package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/models"
)

// AuthEventRepository implements the repositories.AuthEventRepository interface
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) *AuthEventRepository {
	return &AuthEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new auth event
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (
			id, event_type, username, reason, request_id, ip_address, user_agent, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		nullString(event.Username),
		nullString(event.Reason),
		nullString(event.RequestID),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	r.logger.Debug("auth event inserted", zap.String("id", event.ID.String()), zap.String("type", string(event.Type)))
	return nil
}

// ListRecent returns up to limit events, newest first
func (r *AuthEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error) {
	query := `
		SELECT id, event_type, username, reason, request_id, ip_address, user_agent, timestamp
		FROM auth_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		event := &models.AuthEvent{}
		var username, reason, requestID, ipAddress, userAgent sql.NullString
		err := rows.Scan(
			&event.ID,
			&event.Type,
			&username,
			&reason,
			&requestID,
			&ipAddress,
			&userAgent,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		event.Username = username.String
		event.Reason = reason.String
		event.RequestID = requestID.String
		event.IPAddress = ipAddress.String
		event.UserAgent = userAgent.String
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth events: %w", err)
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/models"
)

// DefaultEventCapacity bounds the number of events kept by AuthEventRepository
const DefaultEventCapacity = 1000

// AuthEventRepository backs the audit trail when no database is configured.
// Every event is written to the logger as one structured "auth event" line,
// and the most recent events are kept in memory.
type AuthEventRepository struct {
	mu       sync.RWMutex
	events   []*models.AuthEvent
	capacity int
	logger   *zap.Logger
}

// NewAuthEventRepository creates a repository retaining at most capacity events
func NewAuthEventRepository(capacity int, logger *zap.Logger) *AuthEventRepository {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthEventRepository{
		events:   make([]*models.AuthEvent, 0, capacity),
		capacity: capacity,
		logger:   logger.Named("audit"),
	}
}

// Insert appends an event, evicting the oldest when full
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	copied := *event

	r.logger.Info("auth event",
		zap.String("event_id", copied.ID.String()),
		zap.String("event_type", string(copied.Type)),
		zap.String("username", copied.Username),
		zap.String("reason", copied.Reason),
		zap.String("request_id", copied.RequestID),
		zap.String("ip_address", copied.IPAddress),
		zap.String("user_agent", copied.UserAgent),
		zap.Time("event_time", copied.Timestamp))

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == r.capacity {
		copy(r.events, r.events[1:])
		r.events = r.events[:len(r.events)-1]
	}
	r.events = append(r.events, &copied)
	return nil
}

// ListRecent returns up to limit events, newest first
func (r *AuthEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}

	out := make([]*models.AuthEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := *r.events[i]
		out = append(out, &e)
	}
	return out, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthEventType represents the type of authentication event being audited
type AuthEventType string

const (
	AuthEventLoginSucceeded AuthEventType = "login_succeeded"
	AuthEventLoginFailed    AuthEventType = "login_failed"
	AuthEventLoginBlocked   AuthEventType = "login_blocked"
	AuthEventTokenRejected  AuthEventType = "token_rejected"
)

// AuthEvent is an internal audit record. Reason distinguishes failure causes
// (expired, bad signature, unknown user...) that are never exposed to clients.
type AuthEvent struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Type      AuthEventType `json:"type" db:"event_type"`
	Username  string        `json:"username,omitempty" db:"username"`
	Reason    string        `json:"reason,omitempty" db:"reason"`
	RequestID string        `json:"request_id,omitempty" db:"request_id"`
	IPAddress string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string        `json:"user_agent,omitempty" db:"user_agent"`
	Timestamp time.Time     `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuthEvent model
func (AuthEvent) TableName() string {
	return "auth_events"
}

// NewAuthEvent creates a new AuthEvent instance
func NewAuthEvent(eventType AuthEventType, username string) *AuthEvent {
	return &AuthEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now(),
	}
}

// WithReason sets the internal failure reason
func (e *AuthEvent) WithReason(reason string) *AuthEvent {
	e.Reason = reason
	return e
}

// WithRequest sets request tracking information
func (e *AuthEvent) WithRequest(requestID, ipAddress, userAgent string) *AuthEvent {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// IsFailure returns true for events that represent a rejected attempt
func (e *AuthEvent) IsFailure() bool {
	return e.Type != AuthEventLoginSucceeded
}

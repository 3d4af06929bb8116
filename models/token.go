package models

import "time"

// TokenTypeBearer is the only token type issued by the service
const TokenTypeBearer = "Bearer"

// AccessToken is a signed bearer token handed to the client on login.
// It is never stored server-side.
type AccessToken struct {
	Value     string    `json:"token"`
	TokenType string    `json:"token_type"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiresIn returns the remaining lifetime relative to now
func (t *AccessToken) ExpiresIn(now time.Time) time.Duration {
	if now.After(t.ExpiresAt) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

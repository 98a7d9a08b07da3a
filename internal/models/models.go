package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID          string
	Email       string
	PhoneNumber string
	PassHash    []byte
	IsActive    bool
	IsVerified  bool
	IsSuperuser bool
	Role        Role
	CreatedAt   time.Time
}

// RefreshToken is a persisted refresh token. Only the fingerprint of the
// value handed to the client is stored.
type RefreshToken struct {
	TokenHash string    `json:"token_hash"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token can no longer be exchanged at now.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type EventType string

const (
	EventUserRegistered         EventType = "user.registered"
	EventUserLoggedIn           EventType = "user.logged_in"
	EventUserLoggedOut          EventType = "user.logged_out"
	EventSessionRefreshed       EventType = "session.refreshed"
	EventSessionRefreshRejected EventType = "session.refresh_rejected"
)

// Event is published to the broker after an authentication state change.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

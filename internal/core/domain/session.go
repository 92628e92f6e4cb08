package domain

import (
	"errors"
	"time"
)

var ErrMissingToken = errors.New("missing token")
var ErrSessionNotFound = errors.New("session not found")
var ErrSessionExpired = errors.New("session expired")
var ErrTokenReused = errors.New("refresh token reuse detected")
var ErrDuplicateToken = errors.New("refresh token already exists")
var ErrStoreUnavailable = errors.New("session store unavailable")

// Session binds one outstanding refresh token to its owning user.
// Rows are immutable: a refresh rotates by deleting the old row and
// inserting a new one, never by updating in place.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at the given
// instant. A session whose expiry equals now is already expired.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

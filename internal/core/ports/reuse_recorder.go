package ports

import (
	"context"
	"time"
)

// ReuseRecorder remembers refresh tokens that were rotated away so a
// later presentation of one can be told apart from a token that never
// existed. Entries expire on their own after the given TTL.
type ReuseRecorder interface {
	MarkRetired(ctx context.Context, token, userID string, ttl time.Duration) error
	RetiredOwner(ctx context.Context, token string) (userID string, found bool, err error)
}

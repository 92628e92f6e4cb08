package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRetireTTL = time.Minute

// RetiredTokenStore remembers rotated-away refresh tokens so the auth
// service can tell a replayed token from one that never existed.
// Only the SHA-256 of the token is kept; the marker expires together
// with what would have been the session's remaining lifetime.
// Key format: retired:<sha256(token)> → owning user id.
type RetiredTokenStore struct {
	client *redis.Client
}

// NewRetiredTokenStore creates a RetiredTokenStore wrapping the given Redis client.
func NewRetiredTokenStore(client *redis.Client) *RetiredTokenStore {
	return &RetiredTokenStore{client: client}
}

// MarkRetired records that the token value has been rotated away.
func (s *RetiredTokenStore) MarkRetired(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl < minRetireTTL {
		ttl = minRetireTTL
	}
	if err := s.client.Set(ctx, s.key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("mark retired: %w", err)
	}
	return nil
}

// RetiredOwner reports whether the token was previously rotated away and,
// if so, which user owned it.
func (s *RetiredTokenStore) RetiredOwner(ctx context.Context, token string) (string, bool, error) {
	userID, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("retired lookup: %w", err)
	}
	return userID, true, nil
}

func (s *RetiredTokenStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "retired:" + hex.EncodeToString(sum[:])
}

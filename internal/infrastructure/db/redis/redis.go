package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultTimeout is the fallback dial and command timeout when the
// configuration leaves it unset.
const defaultTimeout = 5 * time.Second

// Connect opens a client against the given Redis database and fails fast
// when the instance does not answer a ping within the timeout.
func Connect(ctx context.Context, addr string, db int, timeout time.Duration) (*redis.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

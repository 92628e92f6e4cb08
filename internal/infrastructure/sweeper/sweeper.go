// Package sweeper removes expired session rows on an interval. It is the
// best-effort second layer behind the store's own TTL index; refresh
// correctness never depends on either having run.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/petfolio/petcare-auth/internal/api/metrics"
	"github.com/petfolio/petcare-auth/internal/core/ports"
)

const defaultInterval = time.Hour

type Sweeper struct {
	sessions ports.SessionRepository
	interval time.Duration
	log      zerolog.Logger

	now func() time.Time
}

// New creates a Sweeper. If interval <= 0, defaultInterval is used.
func New(sessions ports.SessionRepository, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Sweeper{sessions: sessions, interval: interval, log: log, now: time.Now}
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// One pass up front so a long interval does not delay the first
	// cleanup after a restart.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		metrics.SessionsSweptTotal.Add(float64(n))
		s.log.Info().Int64("deleted", n).Msg("expired sessions swept")
	}
}

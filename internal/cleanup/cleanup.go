// Package cleanup periodically removes expired refresh tokens.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	sl "session_auth/internal/lib/logger"
)

type ExpiredTokenDeleter interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type Sweeper struct {
	log      *slog.Logger
	store    ExpiredTokenDeleter
	interval time.Duration
}

func New(log *slog.Logger, store ExpiredTokenDeleter, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:      log.With(slog.String("op", "cleanup.Sweeper")),
		store:    store,
		interval: interval,
	}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("refresh token sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes expired refresh tokens once and returns how many went.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.store.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		s.log.Error("failed to delete expired refresh tokens", sl.Err(err))
		return 0
	}

	if n > 0 {
		s.log.Info("expired refresh tokens deleted", slog.Int64("count", n))
	}

	return n
}

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Purger removes expired entries and reports how many went away.
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired entries so the table does not grow
// without bound. Reads never depend on it.
type Sweeper struct {
	purger   Purger
	interval time.Duration
}

// NewSweeper constructs a sweeper running every interval.
func NewSweeper(purger Purger, interval time.Duration) *Sweeper {
	return &Sweeper{purger: purger, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

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
	n, err := s.purger.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("kv.sweep_failed")
		}
		return
	}
	if n > 0 {
		log.Debug().Int64("deleted", n).Msg("kv.swept")
	}
}

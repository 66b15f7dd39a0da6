// Package store opens the configured kv.Store backend.
package store

import (
	"context"
	"fmt"

	"tokenservice/backend/internal/config"
	"tokenservice/backend/internal/domain/kv"
	"tokenservice/backend/internal/infrastructure/memory"
	"tokenservice/backend/internal/infrastructure/postgres"
	"tokenservice/backend/internal/infrastructure/redis"

	"github.com/rs/zerolog/log"
)

// Backend bundles an opened store with its lifecycle hooks.
type Backend struct {
	Store kv.Store
	// Health is nil when the backend cannot report reachability.
	Health kv.Pinger

	sweeper *Sweeper
	closeFn func()
}

// Open connects to the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		s := memory.NewStore()
		return &Backend{
			Store:   s,
			Health:  s,
			sweeper: NewSweeper(s, cfg.SweepInterval),
			closeFn: func() {},
		}, nil

	case config.StoreRedis:
		s, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return &Backend{
			Store:  s,
			Health: s,
			closeFn: func() {
				if err := s.Close(); err != nil {
					log.Warn().Err(err).Msg("closing redis client")
				}
			},
		}, nil

	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("running database migrations: %w", err)
		}
		s := db.KV()
		return &Backend{
			Store:   s,
			Health:  s,
			sweeper: NewSweeper(s, cfg.SweepInterval),
			closeFn: db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}

// RunSweeper purges expired entries until ctx is done. Backends that expire
// keys on their own return immediately.
func (b *Backend) RunSweeper(ctx context.Context) {
	if b.sweeper == nil {
		return
	}
	b.sweeper.Run(ctx)
}

// Close releases backend resources.
func (b *Backend) Close() {
	if b != nil && b.closeFn != nil {
		b.closeFn()
	}
}

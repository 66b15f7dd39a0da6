// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tokenservice/backend/internal/config"
	authdomain "tokenservice/backend/internal/domain/auth"
	"tokenservice/backend/internal/httpserver"
	"tokenservice/backend/internal/infrastructure/store"
	authusecase "tokenservice/backend/internal/usecase/auth"
	tokenusecase "tokenservice/backend/internal/usecase/token"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// NewTokenService builds the token service for a backend using cfg's tuning.
func NewTokenService(cfg config.Config, backend *store.Backend) *tokenusecase.Service {
	return tokenusecase.NewService(backend.Store, tokenusecase.Options{
		FetchTimeout:     cfg.FetchTimeout,
		FetchConcurrency: cfg.FetchConcurrency,
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	authService := authusecase.NewService(authdomain.Credentials{Plain: cfg.APIKey, Hash: cfg.APIKeyHash})
	if !authService.Configured() {
		log.Warn().Msg("API_KEY not configured in environment variables")
	}

	server := httpserver.NewServer(cfg, authService, NewTokenService(cfg, backend), backend.Health)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		backend.RunSweeper(sweepCtx)
	}()
	defer func() {
		stopSweep()
		wg.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr()).Str("store", cfg.StoreBackend).Msg("HTTP server listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	log.Info().Msg("graceful shutdown completed")
	return nil
}

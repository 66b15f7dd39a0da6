package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tokenservice/backend/internal/config"
	"tokenservice/backend/internal/domain/kv"
	authusecase "tokenservice/backend/internal/usecase/auth"
	tokenusecase "tokenservice/backend/internal/usecase/token"
)

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer   *http.Server
	router       *http.ServeMux
	authService  *authusecase.Service
	tokenService *tokenusecase.Service
	health       kv.Pinger
	addr         string
}

// NewServer constructs a new Server with configured dependencies. health may
// be nil when the store cannot report its reachability.
func NewServer(cfg config.Config, authService *authusecase.Service, tokenService *tokenusecase.Service, health kv.Pinger) *Server {
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	handler := withRequestID(withLogging(withRecover(withCORS(mux, cfg.AllowedOrigins))))

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
		},
		router:       mux,
		authService:  authService,
		tokenService: tokenService,
		health:       health,
		addr:         addr,
	}
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the provided address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	tokendomain "tokenservice/backend/internal/domain/token"

	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/api/tokens", s.requireAPIKey(http.HandlerFunc(s.handleTokens)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("health.store_unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTokens(w, r)
	case http.MethodPost:
		s.handleCreateToken(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	req, errs := parseCreateRequest(body)
	if errs != nil {
		writeValidationError(w, errs)
		return
	}

	tok, err := s.tokenService.Create(r.Context(), req)
	if err != nil {
		s.writeTokenError(w, r, err, "error creating token")
		return
	}

	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	userID, errs := parseListQuery(r.URL.Query())
	if errs != nil {
		writeValidationError(w, errs)
		return
	}

	tokens, err := s.tokenService.ListActive(r.Context(), userID)
	if err != nil {
		s.writeTokenError(w, r, err, "error listing tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) writeTokenError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, tokendomain.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

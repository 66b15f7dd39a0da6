package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	msgInternal         = "Internal server error"
	msgUnauthorized     = "Invalid or missing API key"
	msgValidationFailed = "Validation failed"
)

type errorResponse struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeValidationError(w http.ResponseWriter, details map[string][]string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgValidationFailed, Details: details})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

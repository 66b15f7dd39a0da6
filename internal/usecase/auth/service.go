package auth

import (
	"crypto/subtle"
	"strings"

	domain "tokenservice/backend/internal/domain/auth"

	"golang.org/x/crypto/bcrypt"
)

// Service verifies the shared API key presented by callers.
type Service struct {
	creds domain.Credentials
}

// NewService constructs an auth service from configured credentials.
func NewService(creds domain.Credentials) *Service {
	return &Service{creds: domain.Credentials{
		Plain: strings.TrimSpace(creds.Plain),
		Hash:  strings.TrimSpace(creds.Hash),
	}}
}

// Configured reports whether any API key material is available.
func (s *Service) Configured() bool {
	return s.creds.Plain != "" || s.creds.Hash != ""
}

// VerifyAPIKey checks apiKey against the configured key.
func (s *Service) VerifyAPIKey(apiKey string) error {
	if !s.Configured() {
		return domain.ErrAPIKeyNotConfigured
	}
	if apiKey == "" {
		return domain.ErrAPIKeyMissing
	}

	if s.creds.Hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.creds.Hash), []byte(apiKey)); err != nil {
			return domain.ErrAPIKeyInvalid
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(s.creds.Plain), []byte(apiKey)) != 1 {
		return domain.ErrAPIKeyInvalid
	}
	return nil
}

// HashAPIKey produces a bcrypt hash suitable for API_KEY_HASH.
func HashAPIKey(apiKey string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

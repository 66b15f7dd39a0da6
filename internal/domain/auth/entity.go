package auth

import "errors"

var (
	// ErrAPIKeyMissing indicates a request without an API key header.
	ErrAPIKeyMissing = errors.New("api key missing")
	// ErrAPIKeyInvalid indicates a supplied API key does not match.
	ErrAPIKeyInvalid = errors.New("api key invalid")
	// ErrAPIKeyNotConfigured means the server has no API key to compare against.
	ErrAPIKeyNotConfigured = errors.New("api key not configured")
)

// APIKeyHeader carries the shared API key on every protected request.
const APIKeyHeader = "x-api-key"

// Credentials holds the configured API key material. At most one of the
// fields is expected to be set; Hash takes precedence.
type Credentials struct {
	// Plain is the API key itself.
	Plain string
	// Hash is a bcrypt hash of the API key.
	Hash string
}

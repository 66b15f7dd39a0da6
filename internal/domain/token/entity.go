package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest indicates a create request that would produce an invalid record.
	ErrInvalidRequest = errors.New("invalid token request")
	// ErrStorageUnavailable signals that the backing store could not be reached or timed out.
	// Callers may retry.
	ErrStorageUnavailable = errors.New("token storage unavailable")
)

// TimestampLayout matches the ISO-8601 form used on the wire and in storage.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Token is a scoped bearer credential. It is immutable once created.
type Token struct {
	ID        string
	UserID    string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt time.Time
	Secret    string
}

// CreateRequest captures the input for issuing a token.
type CreateRequest struct {
	UserID           string   `json:"userId"`
	Scopes           []string `json:"scopes"`
	ExpiresInMinutes int      `json:"expiresInMinutes"`
}

// Lifetime returns the requested token lifetime.
func (r CreateRequest) Lifetime() time.Duration {
	return time.Duration(r.ExpiresInMinutes) * time.Minute
}

type tokenJSON struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Scopes    []string `json:"scopes"`
	CreatedAt string   `json:"createdAt"`
	ExpiresAt string   `json:"expiresAt"`
	Token     string   `json:"token"`
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp into UTC.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// MarshalJSON encodes the token in its storage and transport representation.
func (t Token) MarshalJSON() ([]byte, error) {
	scopes := t.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return json.Marshal(tokenJSON{
		ID:        t.ID,
		UserID:    t.UserID,
		Scopes:    scopes,
		CreatedAt: FormatTimestamp(t.CreatedAt),
		ExpiresAt: FormatTimestamp(t.ExpiresAt),
		Token:     t.Secret,
	})
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	createdAt, err := ParseTimestamp(raw.CreatedAt)
	if err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	expiresAt, err := ParseTimestamp(raw.ExpiresAt)
	if err != nil {
		return fmt.Errorf("expiresAt: %w", err)
	}
	*t = Token{
		ID:        raw.ID,
		UserID:    raw.UserID,
		Scopes:    raw.Scopes,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Secret:    raw.Token,
	}
	return nil
}

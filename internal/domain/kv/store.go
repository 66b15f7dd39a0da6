package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or already expired.
var ErrNotFound = errors.New("key not found")

// Store is an expiring key-value store with unordered string sets.
// Operations are atomic per key only; no multi-key transactions are assumed.
type Store interface {
	// SetWithExpiry stores value under key. The key becomes unreadable
	// at or after expireAt (not necessarily exactly at it).
	SetWithExpiry(ctx context.Context, key, value string, expireAt time.Time) error
	// AddToSet adds member to the set at setKey. Adding twice is a no-op.
	AddToSet(ctx context.Context, setKey, member string) error
	// SetMembers lists the set at setKey, empty if the set does not exist.
	SetMembers(ctx context.Context, setKey string) ([]string, error)
	// Get returns the value at key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// RemoveFromSet removes member from the set at setKey. Missing members are ignored.
	RemoveFromSet(ctx context.Context, setKey, member string) error
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

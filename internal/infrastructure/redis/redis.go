package redis

import (
	"context"
	"errors"
	"time"

	"tokenservice/backend/internal/domain/kv"

	goredis "github.com/redis/go-redis/v9"
)

// Store implements kv.Store on top of a Redis server. Expiry is delegated to
// Redis via SET ... EXAT.
type Store struct {
	client goredis.UniversalClient
}

var _ kv.Store = (*Store)(nil)
var _ kv.Pinger = (*Store)(nil)

// New parses a redis:// URL and verifies the server is reachable.
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// SetWithExpiry stores value and lets Redis drop it at expireAt (whole seconds).
func (s *Store) SetWithExpiry(ctx context.Context, key, value string, expireAt time.Time) error {
	return s.client.SetArgs(ctx, key, value, goredis.SetArgs{ExpireAt: expireAt}).Err()
}

// Get fetches key, mapping a missing key to kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", kv.ErrNotFound
		}
		return "", err
	}
	return val, nil
}

// AddToSet runs SADD.
func (s *Store) AddToSet(ctx context.Context, setKey, member string) error {
	return s.client.SAdd(ctx, setKey, member).Err()
}

// SetMembers runs SMEMBERS.
func (s *Store) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	return s.client.SMembers(ctx, setKey).Result()
}

// RemoveFromSet runs SREM.
func (s *Store) RemoveFromSet(ctx context.Context, setKey, member string) error {
	return s.client.SRem(ctx, setKey, member).Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

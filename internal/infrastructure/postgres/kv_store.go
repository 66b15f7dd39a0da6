package postgres

import (
	"context"
	"errors"
	"time"

	"tokenservice/backend/internal/domain/kv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// KVStore implements kv.Store on PostgreSQL. Expired rows are invisible to
// reads and removed by DeleteExpired.
type KVStore struct {
	db DBTX
}

var _ kv.Store = (*KVStore)(nil)
var _ kv.Pinger = (*KVStore)(nil)

// NewKVStore constructs a store.
func NewKVStore(db DBTX) *KVStore {
	return &KVStore{db: db}
}

// SetWithExpiry upserts the value with its absolute expiry.
func (s *KVStore) SetWithExpiry(ctx context.Context, key, value string, expireAt time.Time) error {
	const query = `
INSERT INTO kv_entries (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
`
	_, err := s.db.Exec(ctx, query, key, value, expireAt.UTC())
	return err
}

// Get returns a value that has not expired yet.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1 AND expires_at > now()`

	var value string
	if err := s.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kv.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// AddToSet inserts member, ignoring duplicates.
func (s *KVStore) AddToSet(ctx context.Context, setKey, member string) error {
	const query = `
INSERT INTO kv_set_members (set_key, member)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`
	_, err := s.db.Exec(ctx, query, setKey, member)
	return err
}

// SetMembers lists the members of setKey.
func (s *KVStore) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	const query = `SELECT member FROM kv_set_members WHERE set_key = $1`

	rows, err := s.db.Query(ctx, query, setKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveFromSet deletes member from setKey.
func (s *KVStore) RemoveFromSet(ctx context.Context, setKey, member string) error {
	const query = `DELETE FROM kv_set_members WHERE set_key = $1 AND member = $2`
	_, err := s.db.Exec(ctx, query, setKey, member)
	return err
}

// DeleteExpired purges rows whose expiry has passed.
func (s *KVStore) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM kv_entries WHERE expires_at <= now()`
	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping runs a trivial query.
func (s *KVStore) Ping(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "SELECT 1")
	return err
}

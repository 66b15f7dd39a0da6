package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tokenservice/backend/internal/domain/kv"
)

type entry struct {
	value    string
	expireAt time.Time
}

// Store is an in-process kv.Store. Expired keys are hidden on read and
// removed by DeleteExpired.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	sets    map[string]map[string]struct{}
	nowFunc func() time.Time
}

var _ kv.Store = (*Store)(nil)
var _ kv.Pinger = (*Store)(nil)

// NewStore constructs an empty store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock constructs an empty store that reads time from now.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]entry),
		sets:    make(map[string]map[string]struct{}),
		nowFunc: now,
	}
}

// SetWithExpiry stores value until expireAt.
func (s *Store) SetWithExpiry(_ context.Context, key, value string, expireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expireAt: expireAt}
	return nil
}

// Get returns the live value for key.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !e.expireAt.After(s.nowFunc()) {
		return "", kv.ErrNotFound
	}
	return e.value, nil
}

// AddToSet adds member to setKey.
func (s *Store) AddToSet(_ context.Context, setKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sets[setKey]
	if !ok {
		members = make(map[string]struct{})
		s.sets[setKey] = members
	}
	members[member] = struct{}{}
	return nil
}

// SetMembers lists setKey in lexical order.
func (s *Store) SetMembers(_ context.Context, setKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[setKey]))
	for m := range s.sets[setKey] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// RemoveFromSet removes member from setKey, dropping the set once empty.
func (s *Store) RemoveFromSet(_ context.Context, setKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sets[setKey]
	if !ok {
		return nil
	}
	delete(members, member)
	if len(members) == 0 {
		delete(s.sets, setKey)
	}
	return nil
}

// Delete removes key regardless of its expiry.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// DeleteExpired purges expired keys and returns how many were removed.
func (s *Store) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	var deleted int64
	for key, e := range s.entries {
		if !e.expireAt.After(now) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

package token

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"tokenservice/backend/internal/domain/kv"
	domain "tokenservice/backend/internal/domain/token"
	"tokenservice/backend/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idPattern     = regexp.MustCompile(`^token_[0-9a-f]{16}$`)
	secretPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// --- store wrappers ---

type countingStore struct {
	kv.Store
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) (string, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

type failingStore struct {
	kv.Store
	setErr, addErr, membersErr, getErr, removeErr error
}

func (s *failingStore) SetWithExpiry(ctx context.Context, key, value string, expireAt time.Time) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.SetWithExpiry(ctx, key, value, expireAt)
}

func (s *failingStore) AddToSet(ctx context.Context, setKey, member string) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.Store.AddToSet(ctx, setKey, member)
}

func (s *failingStore) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	if s.membersErr != nil {
		return nil, s.membersErr
	}
	return s.Store.SetMembers(ctx, setKey)
}

func (s *failingStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) RemoveFromSet(ctx context.Context, setKey, member string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Store.RemoveFromSet(ctx, setKey, member)
}

// slowStore blocks Get for one key until the caller gives up.
type slowStore struct {
	kv.Store
	slowKey string
}

func (s *slowStore) Get(ctx context.Context, key string) (string, error) {
	if key == s.slowKey {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.Store.Get(ctx, key)
}

// --- helpers ---

func newTestService(t *testing.T, store kv.Store, clock *fakeClock) *Service {
	t.Helper()
	svc := NewService(store, Options{FetchTimeout: 50 * time.Millisecond, FetchConcurrency: 4})
	svc.nowFunc = clock.Now
	return svc
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func ids(tokens []*domain.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.ID)
	}
	return out
}

// --- Create ---

func TestCreate_Scenario(t *testing.T) {
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	svc := newTestService(t, store, clock)

	tok, err := svc.Create(context.Background(), domain.CreateRequest{
		UserID:           "123",
		Scopes:           []string{"read", "write"},
		ExpiresInMinutes: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, "123", tok.UserID)
	assert.Equal(t, []string{"read", "write"}, tok.Scopes)
	assert.Regexp(t, idPattern, tok.ID)
	assert.Regexp(t, secretPattern, tok.Secret)
	assert.Equal(t, 60*time.Minute, tok.ExpiresAt.Sub(tok.CreatedAt))
	assert.True(t, tok.CreatedAt.Equal(clock.now))
}

func TestCreate_ExactLifetimeWithSubMillisecondClock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 123_456_789, time.UTC)}
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)

	for _, minutes := range []int{1, 15, 60, 1440} {
		tok, err := svc.Create(context.Background(), domain.CreateRequest{
			UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: minutes,
		})
		require.NoError(t, err)
		assert.Equal(t, time.Duration(minutes)*time.Minute, tok.ExpiresAt.Sub(tok.CreatedAt))
		assert.Equal(t, 123_000_000, tok.CreatedAt.Nanosecond())
	}
}

func TestCreate_PersistsRecordAndIndex(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	svc := newTestService(t, store, clock)

	tok, err := svc.Create(ctx, domain.CreateRequest{UserID: "u1", Scopes: []string{"read"}, ExpiresInMinutes: 5})
	require.NoError(t, err)

	raw, err := store.Get(ctx, "token:"+tok.ID)
	require.NoError(t, err)
	assert.Contains(t, raw, `"token":"`+tok.Secret+`"`)

	members, err := store.SetMembers(ctx, "user_tokens:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{tok.ID}, members)

	clock.Advance(5 * time.Minute)
	_, err = store.Get(ctx, "token:"+tok.ID)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCreate_CopiesScopes(t *testing.T) {
	clock := newClock()
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)

	scopes := []string{"read"}
	tok, err := svc.Create(context.Background(), domain.CreateRequest{UserID: "u", Scopes: scopes, ExpiresInMinutes: 1})
	require.NoError(t, err)

	scopes[0] = "admin"
	assert.Equal(t, []string{"read"}, tok.Scopes)
}

func TestCreate_WhitespaceUserIsAValidOwner(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)

	tok, err := svc.Create(ctx, domain.CreateRequest{UserID: "  ", Scopes: []string{"read"}, ExpiresInMinutes: 5})
	require.NoError(t, err)
	assert.Equal(t, "  ", tok.UserID)

	listed, err := svc.ListActive(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{tok.ID}, ids(listed))
}

func TestCreate_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  domain.CreateRequest
	}{
		{name: "zero lifetime", req: domain.CreateRequest{UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: 0}},
		{name: "negative lifetime", req: domain.CreateRequest{UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: -5}},
		{name: "empty user", req: domain.CreateRequest{UserID: "", Scopes: []string{"read"}, ExpiresInMinutes: 5}},
		{name: "no scopes", req: domain.CreateRequest{UserID: "u", ExpiresInMinutes: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			store := &failingStore{
				Store:  memory.NewStoreWithClock(clock.Now),
				setErr: errors.New("must not be called"),
				addErr: errors.New("must not be called"),
			}
			svc := newTestService(t, store, clock)

			tok, err := svc.Create(context.Background(), tt.req)
			assert.Nil(t, tok)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestCreate_RecordWriteFailure(t *testing.T) {
	clock := newClock()
	store := &failingStore{Store: memory.NewStoreWithClock(clock.Now), setErr: errors.New("connection refused")}
	svc := newTestService(t, store, clock)

	_, err := svc.Create(context.Background(), domain.CreateRequest{UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorContains(t, err, "connection refused")
}

func TestCreate_IndexFailureLeavesOrphanedRecord(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	inner := memory.NewStoreWithClock(clock.Now)
	store := &failingStore{Store: inner, addErr: errors.New("connection reset")}
	svc := newTestService(t, store, clock)

	tok, err := svc.Create(ctx, domain.CreateRequest{UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: 1})
	require.NoError(t, err)

	_, err = inner.Get(ctx, "token:"+tok.ID)
	assert.NoError(t, err)

	listed, err := svc.ListActive(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreate_RandomSourceFailure(t *testing.T) {
	clock := newClock()
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)
	svc.random = iotest.ErrReader(errors.New("entropy exhausted"))

	_, err := svc.Create(context.Background(), domain.CreateRequest{UserID: "u", Scopes: []string{"read"}, ExpiresInMinutes: 1})
	assert.ErrorContains(t, err, "entropy exhausted")
}

// --- ListActive ---

func TestListActive_IncludesFreshTokens(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)

	first, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 10})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"write"}, ExpiresInMinutes: 10})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Secret, second.Secret)

	clock.Advance(9 * time.Minute)
	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids(tokens))

	for _, tok := range tokens {
		if tok.ID == first.ID {
			assert.Equal(t, first.Secret, tok.Secret)
			assert.Equal(t, []string{"read"}, tok.Scopes)
			assert.True(t, first.ExpiresAt.Equal(tok.ExpiresAt))
		}
	}
}

func TestListActive_EmptyIndex(t *testing.T) {
	clock := newClock()
	store := &countingStore{Store: memory.NewStoreWithClock(clock.Now)}
	svc := newTestService(t, store, clock)

	tokens, err := svc.ListActive(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, tokens)
	assert.Empty(t, tokens)
	assert.Equal(t, int32(0), store.gets.Load())
}

func TestListActive_PrunesStaleEntries(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	svc := newTestService(t, store, clock)

	live, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 10})
	require.NoError(t, err)
	gone, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 10})
	require.NoError(t, err)

	// simulate the store purging the record behind the index
	require.NoError(t, store.Delete(ctx, "token:"+gone.ID))
	require.NoError(t, store.AddToSet(ctx, "user_tokens:U", "token_ffffffffffffffff"))

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID}, ids(tokens))

	members, err := store.SetMembers(ctx, "user_tokens:U")
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID}, members)
}

func TestListActive_ExpiredTokensDisappear(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	svc := newTestService(t, store, clock)

	short, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 1})
	require.NoError(t, err)
	long, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 60})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{long.ID}, ids(tokens))

	members, err := store.SetMembers(ctx, "user_tokens:U")
	require.NoError(t, err)
	assert.NotContains(t, members, short.ID)
}

func TestListActive_SkipsLogicallyExpiredRecordNotYetPurged(t *testing.T) {
	ctx := context.Background()
	storeClock := newClock()
	svcClock := newClock()
	store := memory.NewStoreWithClock(storeClock.Now)
	svc := newTestService(t, store, svcClock)

	tok, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 1})
	require.NoError(t, err)

	// the store lags behind; the record is still readable
	svcClock.Advance(time.Minute)

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	members, err := store.SetMembers(ctx, "user_tokens:U")
	require.NoError(t, err)
	assert.Equal(t, []string{tok.ID}, members)
}

func TestListActive_SkipsUnreadableRecords(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	svc := newTestService(t, store, clock)

	require.NoError(t, store.SetWithExpiry(ctx, "token:token_0000000000000000", "{not json", clock.now.Add(time.Hour)))
	require.NoError(t, store.AddToSet(ctx, "user_tokens:U", "token_0000000000000000"))

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestListActive_FetchTimeoutExcludesToken(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	inner := memory.NewStoreWithClock(clock.Now)
	creator := newTestService(t, inner, clock)

	slow, err := creator.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 10})
	require.NoError(t, err)
	fast, err := creator.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 10})
	require.NoError(t, err)

	svc := newTestService(t, &slowStore{Store: inner, slowKey: "token:" + slow.ID}, clock)

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{fast.ID}, ids(tokens))

	members, err := inner.SetMembers(ctx, "user_tokens:U")
	require.NoError(t, err)
	assert.Contains(t, members, slow.ID)
}

func TestListActive_ManyTokens(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	svc := newTestService(t, memory.NewStoreWithClock(clock.Now), clock)

	want := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		tok, err := svc.Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 5})
		require.NoError(t, err)
		want = append(want, tok.ID)
	}

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.ElementsMatch(t, want, ids(tokens))
}

func TestListActive_StorageErrors(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	inner := memory.NewStoreWithClock(clock.Now)
	_, err := newTestService(t, inner, clock).Create(ctx, domain.CreateRequest{UserID: "U", Scopes: []string{"read"}, ExpiresInMinutes: 5})
	require.NoError(t, err)

	t.Run("index read", func(t *testing.T) {
		svc := newTestService(t, &failingStore{Store: inner, membersErr: errors.New("dial tcp: refused")}, clock)
		_, err := svc.ListActive(ctx, "U")
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})

	t.Run("record read", func(t *testing.T) {
		svc := newTestService(t, &failingStore{Store: inner, getErr: errors.New("dial tcp: refused")}, clock)
		_, err := svc.ListActive(ctx, "U")
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})
}

func TestListActive_PruneFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	inner := memory.NewStoreWithClock(clock.Now)
	require.NoError(t, inner.AddToSet(ctx, "user_tokens:U", "token_ffffffffffffffff"))

	svc := newTestService(t, &failingStore{Store: inner, removeErr: errors.New("read only replica")}, clock)

	tokens, err := svc.ListActive(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	members, err := inner.SetMembers(ctx, "user_tokens:U")
	require.NoError(t, err)
	assert.Equal(t, []string{"token_ffffffffffffffff"}, members)
}

// --- IsExpired ---

func TestIsExpired(t *testing.T) {
	clock := newClock()
	svc := newTestService(t, memory.NewStore(), clock)

	assert.True(t, svc.IsExpired(domain.FormatTimestamp(clock.now.Add(-time.Second))))
	assert.True(t, svc.IsExpired(domain.FormatTimestamp(clock.now)))
	assert.False(t, svc.IsExpired(domain.FormatTimestamp(clock.now.Add(time.Millisecond))))
	assert.True(t, svc.IsExpired("not a timestamp"))
}

func TestIsExpired_WallClock(t *testing.T) {
	assert.True(t, IsExpired(domain.FormatTimestamp(time.Now().Add(-time.Second))))
	assert.False(t, IsExpired(domain.FormatTimestamp(time.Now().Add(time.Minute))))
}

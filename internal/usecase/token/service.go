package token

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"tokenservice/backend/internal/domain/kv"
	domain "tokenservice/backend/internal/domain/token"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFetchTimeout bounds a single record lookup while listing.
	DefaultFetchTimeout = 2 * time.Second
	// DefaultFetchConcurrency bounds concurrent record lookups while listing.
	DefaultFetchConcurrency = 16

	maxLifetimeMinutes = math.MaxInt64 / int64(time.Minute)
)

// Options tunes how the service talks to the store.
type Options struct {
	FetchTimeout     time.Duration
	FetchConcurrency int
}

// Service manages the token lifecycle on top of an expiring key-value store.
// It keeps no state between calls.
type Service struct {
	store            kv.Store
	fetchTimeout     time.Duration
	fetchConcurrency int
	random           io.Reader
	nowFunc          func() time.Time
}

// NewService constructs a token service. Zero options fall back to defaults.
func NewService(store kv.Store, opts Options) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}
	return &Service{
		store:            store,
		fetchTimeout:     opts.FetchTimeout,
		fetchConcurrency: opts.FetchConcurrency,
		random:           rand.Reader,
		nowFunc:          time.Now,
	}
}

// Create issues a new token, stores it with an absolute expiry and records it
// in the owner's index. The returned token is the only one guaranteed to carry
// the secret at creation time.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Token, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	id, err := generateID(s.random)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret(s.random)
	if err != nil {
		return nil, err
	}

	createdAt := s.nowFunc().UTC().Truncate(time.Millisecond)
	expiresAt := createdAt.Add(req.Lifetime())
	if !expiresAt.After(createdAt) {
		return nil, fmt.Errorf("%w: expiry must be after creation", domain.ErrInvalidRequest)
	}

	tok := &domain.Token{
		ID:        id,
		UserID:    req.UserID,
		Scopes:    append([]string(nil), req.Scopes...),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Secret:    secret,
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	// The store works with whole epoch seconds.
	if err := s.store.SetWithExpiry(ctx, tokenKey(id), string(payload), expiresAt.Truncate(time.Second)); err != nil {
		return nil, storageError("writing token record", err)
	}

	if err := s.store.AddToSet(ctx, userTokensKey(req.UserID), id); err != nil {
		// The record still expires on schedule; it is just not listed.
		log.Ctx(ctx).Warn().
			Err(err).
			Str("token_id", id).
			Str("user_id", req.UserID).
			Msg("token.index_add_failed")
	}

	return tok, nil
}

// ListActive returns the user's tokens that have not expired yet. Index
// entries whose record is gone are pruned on the way. Order is unspecified.
func (s *Service) ListActive(ctx context.Context, userID string) ([]*domain.Token, error) {
	indexKey := userTokensKey(userID)

	ids, err := s.store.SetMembers(ctx, indexKey)
	if err != nil {
		return nil, storageError("reading token index", err)
	}
	if len(ids) == 0 {
		return []*domain.Token{}, nil
	}

	found := make([]*domain.Token, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			tok, err := s.fetchRecord(gctx, indexKey, id)
			if err != nil {
				return err
			}
			if tok != nil && !isExpiredAt(tok.ExpiresAt, s.nowFunc()) {
				found[i] = tok
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tokens := make([]*domain.Token, 0, len(found))
	for _, tok := range found {
		if tok != nil {
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

// fetchRecord loads one token. A nil token with a nil error means the entry
// should be skipped.
func (s *Service) fetchRecord(ctx context.Context, indexKey, id string) (*domain.Token, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	raw, err := s.store.Get(fetchCtx, tokenKey(id))
	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
		s.pruneIndex(ctx, indexKey, id)
		return nil, nil
	case ctx.Err() != nil:
		return nil, storageError("fetching token record", ctx.Err())
	case fetchCtx.Err() != nil:
		log.Ctx(ctx).Warn().
			Err(err).
			Str("token_id", id).
			Dur("timeout", s.fetchTimeout).
			Msg("token.fetch_timeout")
		return nil, nil
	default:
		return nil, storageError("fetching token record", err)
	}

	var tok domain.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("token_id", id).
			Msg("token.record_unreadable")
		return nil, nil
	}
	return &tok, nil
}

// pruneIndex drops a stale id from the user's index. Failure only means the
// next listing tries again.
func (s *Service) pruneIndex(ctx context.Context, indexKey, id string) {
	pruneCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	if err := s.store.RemoveFromSet(pruneCtx, indexKey, id); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("token_id", id).
			Msg("token.prune_failed")
		return
	}
	log.Ctx(ctx).Debug().Str("token_id", id).Msg("token.pruned")
}

// IsExpired reports whether expiresAt is at or before the service clock.
func (s *Service) IsExpired(expiresAt string) bool {
	return isExpiredString(expiresAt, s.nowFunc())
}

// IsExpired reports whether the ISO-8601 timestamp is at or before now.
// Unparseable input counts as expired.
func IsExpired(expiresAt string) bool {
	return isExpiredString(expiresAt, time.Now())
}

func isExpiredString(expiresAt string, now time.Time) bool {
	t, err := domain.ParseTimestamp(expiresAt)
	if err != nil {
		return true
	}
	return isExpiredAt(t, now)
}

func isExpiredAt(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}

func validateRequest(req domain.CreateRequest) error {
	switch {
	case req.UserID == "":
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	case len(req.Scopes) == 0:
		return fmt.Errorf("%w: at least one scope is required", domain.ErrInvalidRequest)
	case req.ExpiresInMinutes <= 0:
		return fmt.Errorf("%w: lifetime must be a positive number of minutes", domain.ErrInvalidRequest)
	case int64(req.ExpiresInMinutes) > maxLifetimeMinutes:
		return fmt.Errorf("%w: lifetime too large", domain.ErrInvalidRequest)
	}
	return nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

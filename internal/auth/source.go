package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNoToken is returned when no session token is available (signed out).
var ErrNoToken = errors.New("no session token")

// Default refresh timings.
const (
	// DefaultLeeway refreshes a token this long before it expires.
	DefaultLeeway = 30 * time.Second
	// DefaultOpaqueTTL is how long a non-JWT token is reused before refetching.
	DefaultOpaqueTTL = time.Minute
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, used by the CLI and tests.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FetchFunc asks the identity provider session for a current token.
type FetchFunc func(ctx context.Context) (string, error)

// CachingSource reuses a fetched token until shortly before its exp claim.
// Tokens that are not JWTs are reused for OpaqueTTL.
type CachingSource struct {
	fetch     FetchFunc
	clock     clock.Clock
	leeway    time.Duration
	opaqueTTL time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	token   string
	validTo time.Time
}

// CachingOption configures a CachingSource.
type CachingOption func(*CachingSource)

// WithClock sets the clock used for expiry checks.
func WithClock(c clock.Clock) CachingOption {
	return func(s *CachingSource) { s.clock = c }
}

// WithLeeway sets how early tokens are refreshed.
func WithLeeway(d time.Duration) CachingOption {
	return func(s *CachingSource) { s.leeway = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CachingOption {
	return func(s *CachingSource) { s.logger = l }
}

// NewCachingSource wraps fetch with expiry-aware caching.
func NewCachingSource(fetch FetchFunc, opts ...CachingOption) *CachingSource {
	s := &CachingSource{
		fetch:     fetch,
		clock:     clock.New(),
		leeway:    DefaultLeeway,
		opaqueTTL: DefaultOpaqueTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the cached token or fetches a new one. Concurrent callers
// share one fetch because the lock is held across it.
func (s *CachingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.token != "" && now.Before(s.validTo) {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}

	exp, err := ExpiresAt(token)
	switch {
	case err == nil:
		s.validTo = exp.Add(-s.leeway)
	default:
		s.logger.Debug("session token has no readable expiry, using opaque ttl",
			slog.String("error", err.Error()))
		s.validTo = now.Add(s.opaqueTTL)
	}
	s.token = token
	return token, nil
}

// Invalidate drops the cached token so the next call refetches. The API
// client calls this after a 401.
func (s *CachingSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.validTo = time.Time{}
	s.mu.Unlock()
}

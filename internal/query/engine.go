// Package query implements the paginated query engine. Every distinct
// {kind, region, filter} tuple is an independent sequence of offset pages
// that hold entity ids only; entities are written to the shared
// cache.Cache and resolved from it at read time.
package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/onnwee/askaround/internal/api"
	"github.com/onnwee/askaround/internal/cache"
	"github.com/onnwee/askaround/internal/tracing"
)

// Defaults for Config.
const (
	DefaultPageSize      = 10
	DefaultGCTime        = time.Second
	DefaultRetries       = 2
	DefaultRetryInterval = time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// Entity is anything the query engine can page over.
type Entity interface {
	EntityID() string
}

// Fetcher loads one page of at most limit entities starting at offset.
type Fetcher[T Entity] func(ctx context.Context, key Key, limit, offset int) ([]T, error)

// Config configures an Engine.
type Config struct {
	// PageSize is the page limit; a page of exactly PageSize items means
	// more may follow.
	PageSize int
	// GCTime is how long a sequence without observers is kept.
	GCTime time.Duration
	// Retries is the number of attempts after the first. DefaultConfig sets
	// DefaultRetries; zero disables retrying.
	Retries int
	// RetryInterval is the first backoff delay; later delays double up to
	// MaxRetryDelay.
	RetryInterval time.Duration
	MaxRetryDelay time.Duration
	// Retryable classifies fetch errors; defaults to api.IsRetryable.
	Retryable func(error) bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		PageSize:      DefaultPageSize,
		GCTime:        DefaultGCTime,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Engine owns the sequences for one entity type.
type Engine[T Entity] struct {
	name  string
	fetch Fetcher[T]
	cache *cache.Cache[T]
	cfg   Config

	mu   sync.Mutex
	seqs map[string]*Sequence[T]
}

// NewEngine creates an engine named name ("questions", "responses") that
// stores fetched entities in c.
func NewEngine[T Entity](name string, fetch Fetcher[T], c *cache.Cache[T], cfg Config) *Engine[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.GCTime <= 0 {
		cfg.GCTime = DefaultGCTime
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.Retryable == nil {
		cfg.Retryable = api.IsRetryable
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine[T]{
		name:  name,
		fetch: fetch,
		cache: c,
		cfg:   cfg,
		seqs:  make(map[string]*Sequence[T]),
	}
}

// Cache returns the entity cache the engine writes to.
func (e *Engine[T]) Cache() *cache.Cache[T] { return e.cache }

// PageSize returns the configured page limit.
func (e *Engine[T]) PageSize() int { return e.cfg.PageSize }

// Sequence returns the sequence for key, creating it if absent. A sequence
// that is never acquired is evicted after GCTime.
func (e *Engine[T]) Sequence(key Key) *Sequence[T] {
	id := key.String()

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.seqs[id]; ok {
		return s
	}
	s := &Sequence[T]{engine: e, key: key, id: id}
	e.seqs[id] = s
	s.scheduleGC()
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SetSequences(e.name, len(e.seqs))
	}
	return s
}

// Lookup returns the sequence for key without creating it.
func (e *Engine[T]) Lookup(key Key) (*Sequence[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.seqs[key.String()]
	return s, ok
}

// Len returns the number of cached sequences.
func (e *Engine[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seqs)
}

func (e *Engine[T]) evict(s *Sequence[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.seqs[s.id]; !ok || cur != s {
		return
	}
	if !s.idle() {
		return
	}
	delete(e.seqs, s.id)
	e.cfg.Logger.Debug("query sequence evicted",
		slog.String("engine", e.name),
		slog.String("key", s.id))
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.IncEvictions(e.name)
		e.cfg.Metrics.SetSequences(e.name, len(e.seqs))
	}
}

func (e *Engine[T]) matching(pred func(Key) bool) []*Sequence[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Sequence[T], 0, len(e.seqs))
	for _, s := range e.seqs {
		if pred == nil || pred(s.key) {
			out = append(out, s)
		}
	}
	return out
}

// RemoveID filters id out of every page of every sequence matching pred and
// returns how many sequences changed.
func (e *Engine[T]) RemoveID(pred func(Key) bool, id string) int {
	n := 0
	for _, s := range e.matching(pred) {
		if s.removeID(id) {
			n++
		}
	}
	return n
}

// InvalidateMatching marks every sequence matching pred stale.
func (e *Engine[T]) InvalidateMatching(pred func(Key) bool) int {
	seqs := e.matching(pred)
	for _, s := range seqs {
		s.Invalidate()
	}
	return len(seqs)
}

// ResetMatching truncates every sequence matching pred to its first page and
// marks it stale, so the next revalidation starts again from page one.
func (e *Engine[T]) ResetMatching(pred func(Key) bool) int {
	seqs := e.matching(pred)
	for _, s := range seqs {
		s.ResetToFirstPage()
	}
	return len(seqs)
}

// Clear drops every sequence.
func (e *Engine[T]) Clear() {
	e.mu.Lock()
	seqs := e.seqs
	e.seqs = make(map[string]*Sequence[T])
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SetSequences(e.name, 0)
	}
	e.mu.Unlock()

	for _, s := range seqs {
		s.stopGC()
	}
}

// fetchPage calls the fetcher with retries. Errors the Retryable func
// rejects are returned after the first attempt.
func (e *Engine[T]) fetchPage(ctx context.Context, key Key, offset int) ([]T, error) {
	limit := e.cfg.PageSize
	ctx, endSpan := tracing.StartFetchSpan(ctx, e.name, key.String(), offset, limit)
	start := e.cfg.Clock.Now()

	op := func() ([]T, error) {
		items, err := e.fetch(ctx, key, limit, offset)
		if err != nil && !e.cfg.Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return items, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInterval
	b.MaxInterval = e.cfg.MaxRetryDelay
	b.MaxElapsedTime = 0
	b.Clock = e.cfg.Clock

	notify := func(err error, next time.Duration) {
		e.cfg.Logger.Warn("page fetch failed, retrying",
			slog.String("engine", e.name),
			slog.String("key", key.String()),
			slog.Int("offset", offset),
			slog.Duration("delay", next),
			slog.String("error", err.Error()))
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.IncRetries(e.name)
		}
	}

	items, err := backoff.RetryNotifyWithTimerAndData(op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.Retries)), ctx),
		notify,
		&clockTimer{clock: e.cfg.Clock})

	if e.cfg.Metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		e.cfg.Metrics.ObserveFetch(e.name, result, e.cfg.Clock.Since(start).Seconds())
	}
	endSpan(err)
	return items, err
}

// clockTimer is a backoff.Timer on the engine clock, so a mock clock drives
// retry delays.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	t.Stop()
	t.timer = t.clock.Timer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}

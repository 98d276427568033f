// Package cache provides the normalized entity cache shared by every feed,
// list and detail view. Each entity is stored once by id; paginated
// sequences hold ids only and resolve through the cache at read time, so a
// single Patch is visible everywhere the entity appears.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"
)

// ErrDeleted is returned by Load for an id that has been removed.
var ErrDeleted = errors.New("entity deleted")

// ErrNoLoader is returned by Load when the cache has no Loader.
var ErrNoLoader = errors.New("cache has no loader")

// State describes what the cache knows about an id.
type State int

// Entry states.
const (
	Missing State = iota
	Fresh
	Stale
	Deleted
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Live reports whether the state carries a usable value.
func (s State) Live() bool { return s == Fresh || s == Stale }

// Loader fetches the authoritative value for id.
type Loader[T any] func(ctx context.Context, id string) (T, error)

type entry[T any] struct {
	value   T
	state   State
	updated time.Time
}

// Cache is a concurrency-safe id -> entity map with tombstones.
type Cache[T any] struct {
	name       string
	loader     Loader[T]
	store      Store[T]
	metrics    *Metrics
	logger     *slog.Logger
	clock      clock.Clock
	staleAfter time.Duration

	mu      sync.RWMutex
	entries map[string]*entry[T]

	group singleflight.Group
	bg    sync.WaitGroup
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithLoader sets the function used by Read and Load to fetch entities.
func WithLoader[T any](l Loader[T]) Option[T] {
	return func(c *Cache[T]) { c.loader = l }
}

// WithStore sets a persistent second tier.
func WithStore[T any](s Store[T]) Option[T] {
	return func(c *Cache[T]) { c.store = s }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics[T any](m *Metrics) Option[T] {
	return func(c *Cache[T]) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *Cache[T]) { c.logger = l }
}

// WithClock sets the clock used for entry ages.
func WithClock[T any](clk clock.Clock) Option[T] {
	return func(c *Cache[T]) { c.clock = clk }
}

// WithStaleAfter makes fresh entries read as Stale once older than d.
// Zero disables age-based staleness.
func WithStaleAfter[T any](d time.Duration) Option[T] {
	return func(c *Cache[T]) { c.staleAfter = d }
}

// New creates a cache. name labels metrics and logs ("questions").
func New[T any](name string, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		name:    name,
		logger:  slog.Default(),
		clock:   clock.New(),
		entries: make(map[string]*entry[T]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the cache name.
func (c *Cache[T]) Name() string { return c.name }

func (c *Cache[T]) stateOf(e *entry[T]) State {
	if e.state == Fresh && c.staleAfter > 0 && c.clock.Since(e.updated) > c.staleAfter {
		return Stale
	}
	return e.state
}

// Get returns the last known value for id. The value is the zero T when the
// state is Missing or Deleted.
func (c *Cache[T]) Get(id string) (T, State) {
	c.mu.RLock()
	e, ok := c.entries[id]
	var (
		v  T
		st = Missing
	)
	if ok {
		st = c.stateOf(e)
		if st != Deleted {
			v = e.value
		}
	}
	c.mu.RUnlock()

	c.observe(st)
	return v, st
}

func (c *Cache[T]) observe(st State) {
	if c.metrics == nil {
		return
	}
	switch st {
	case Fresh, Stale:
		c.metrics.IncHit(c.name)
	case Missing:
		c.metrics.IncMiss(c.name)
	case Deleted:
		c.metrics.IncTombstoneRead(c.name)
	}
}

// Set stores v as the fresh value for id. Last write wins, including over
// a tombstone.
func (c *Cache[T]) Set(id string, v T) {
	c.mu.Lock()
	c.entries[id] = &entry[T]{value: v, state: Fresh, updated: c.clock.Now()}
	c.mu.Unlock()
}

// Refresh stores v as fresh unless id is tombstoned, and reports whether it
// was stored. Server reads that may race a delete use Refresh.
func (c *Cache[T]) Refresh(id string, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok && e.state == Deleted {
		return false
	}
	c.entries[id] = &entry[T]{value: v, state: Fresh, updated: c.clock.Now()}
	return true
}

// Patch applies fn to the current value under the cache lock. It returns
// false, without calling fn, when id is missing or deleted.
func (c *Cache[T]) Patch(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.state == Deleted {
		return false
	}
	e.value = fn(e.value)
	return true
}

// Invalidate marks id stale so the next Read revalidates it.
func (c *Cache[T]) Invalidate(id string) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.state == Fresh {
		e.state = Stale
	}
	c.mu.Unlock()
}

// InvalidateFunc marks every live entry matching pred stale and returns how
// many were marked.
func (c *Cache[T]) InvalidateFunc(pred func(id string, v T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if e.state == Fresh && pred(id, e.value) {
			e.state = Stale
			n++
		}
	}
	return n
}

// Remove replaces id with a tombstone. A tombstoned id is never resurrected
// by an in-flight load; only an explicit Set revives it.
func (c *Cache[T]) Remove(id string) {
	c.mu.Lock()
	var zero T
	c.entries[id] = &entry[T]{value: zero, state: Deleted, updated: c.clock.Now()}
	c.mu.Unlock()
}

// Clear drops every entry and tombstone.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[T])
	c.mu.Unlock()
}

// Len returns the number of entries, tombstones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Read returns the last known value immediately. When the entry is stale or
// missing and a Loader is configured, a background reload is started; reloads
// of the same id are shared.
func (c *Cache[T]) Read(ctx context.Context, id string) (T, State) {
	v, st := c.Get(id)
	if (st == Stale || st == Missing) && c.loader != nil {
		c.revalidate(context.WithoutCancel(ctx), id)
	}
	return v, st
}

func (c *Cache[T]) revalidate(ctx context.Context, id string) {
	c.bg.Add(1)
	ch := c.group.DoChan(id, func() (any, error) {
		return c.fetch(ctx, id)
	})
	go func() {
		defer c.bg.Done()
		res := <-ch
		if res.Err != nil && !errors.Is(res.Err, ErrDeleted) {
			c.logger.Warn("background revalidation failed",
				slog.String("cache", c.name),
				slog.String("id", id),
				slog.String("error", res.Err.Error()))
		}
	}()
}

// Wait blocks until background revalidations started by Read have finished.
func (c *Cache[T]) Wait() {
	c.bg.Wait()
}

// Load returns a fresh value, fetching through the Loader when the entry is
// missing or stale. On a failed fetch the stale value, if any, is returned
// along with the error. Deleted ids return ErrDeleted without fetching.
func (c *Cache[T]) Load(ctx context.Context, id string) (T, error) {
	v, st := c.Get(id)
	switch st {
	case Fresh:
		return v, nil
	case Deleted:
		return v, ErrDeleted
	}
	if c.loader == nil {
		return v, ErrNoLoader
	}

	res, err, _ := c.group.Do(id, func() (any, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		return v, err
	}
	return res.(T), nil
}

// fetch runs the loader and stores the result unless id was removed while
// the request was in flight.
func (c *Cache[T]) fetch(ctx context.Context, id string) (T, error) {
	v, err := c.loader(ctx, id)
	if c.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		c.metrics.IncRevalidation(c.name, result)
	}
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.state == Deleted {
		c.mu.Unlock()
		return v, ErrDeleted
	}
	c.entries[id] = &entry[T]{value: v, state: Fresh, updated: c.clock.Now()}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, id, v); err != nil {
			c.logger.Warn("failed to persist cache entry",
				slog.String("cache", c.name),
				slog.String("id", id),
				slog.String("error", err.Error()))
		}
	}
	return v, nil
}

// Warm copies persisted snapshots for ids into memory as stale entries,
// leaving existing entries alone. It returns how many were loaded.
func (c *Cache[T]) Warm(ctx context.Context, ids ...string) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	n := 0
	for _, id := range ids {
		v, ok, err := c.store.Load(ctx, id)
		if err != nil {
			return n, fmt.Errorf("warm %s %s: %w", c.name, id, err)
		}
		if !ok {
			continue
		}
		c.mu.Lock()
		if _, exists := c.entries[id]; !exists {
			c.entries[id] = &entry[T]{value: v, state: Stale, updated: c.clock.Now()}
			n++
		}
		c.mu.Unlock()
	}
	return n, nil
}

// Flush writes live entries to the store and deletes tombstoned ones.
func (c *Cache[T]) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	type snap struct {
		id      string
		value   T
		deleted bool
	}
	c.mu.RLock()
	snaps := make([]snap, 0, len(c.entries))
	for id, e := range c.entries {
		snaps = append(snaps, snap{id: id, value: e.value, deleted: e.state == Deleted})
	}
	c.mu.RUnlock()

	var errs []error
	for _, s := range snaps {
		var err error
		if s.deleted {
			err = c.store.Delete(ctx, s.id)
		} else {
			err = c.store.Save(ctx, s.id, s.value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("flush %s %s: %w", c.name, s.id, err))
		}
	}
	return errors.Join(errs...)
}

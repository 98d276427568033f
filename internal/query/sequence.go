package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
)

// Page is one offset page of entity ids. NextOffset is nil on the last page.
type Page struct {
	IDs        []string
	Offset     int
	NextOffset *int
}

// HasMore reports whether another page may follow.
func (p Page) HasMore() bool { return p.NextOffset != nil }

// State is a snapshot of a sequence's loading status.
type State struct {
	IsLoadingInitial bool
	IsLoadingMore    bool
	IsRefetching     bool
	HasMore          bool
	Stale            bool
	Pages            int
	Err              error
}

// Sequence is the ordered list of fetched pages for one Key. Methods are
// safe for concurrent use.
type Sequence[T Entity] struct {
	engine *Engine[T]
	key    Key
	id     string

	mu             sync.Mutex
	pages          []Page
	generation     uint64
	fetching       bool
	loadingInitial bool
	loadingMore    bool
	refetching     bool
	stale          bool
	err            error
	observers      int
	gcTimer        *clock.Timer
}

// Key returns the sequence key.
func (s *Sequence[T]) Key() Key { return s.key }

// Acquire registers an observer; an observed sequence is never evicted.
func (s *Sequence[T]) Acquire() {
	s.mu.Lock()
	s.observers++
	if s.gcTimer != nil {
		s.gcTimer.Stop()
		s.gcTimer = nil
	}
	s.mu.Unlock()
}

// Release unregisters an observer. When the last observer leaves, the
// sequence is evicted after the engine's GCTime unless re-acquired.
func (s *Sequence[T]) Release() {
	s.mu.Lock()
	if s.observers > 0 {
		s.observers--
	}
	idle := s.observers == 0
	s.mu.Unlock()
	if idle {
		s.scheduleGC()
	}
}

func (s *Sequence[T]) scheduleGC() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers > 0 {
		return
	}
	if s.gcTimer != nil {
		s.gcTimer.Stop()
	}
	s.gcTimer = s.engine.cfg.Clock.AfterFunc(s.engine.cfg.GCTime, func() {
		s.engine.evict(s)
	})
}

func (s *Sequence[T]) stopGC() {
	s.mu.Lock()
	if s.gcTimer != nil {
		s.gcTimer.Stop()
		s.gcTimer = nil
	}
	s.generation++
	s.mu.Unlock()
}

func (s *Sequence[T]) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers == 0
}

// Pages returns a copy of the fetched pages.
func (s *Sequence[T]) Pages() []Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Page, len(s.pages))
	for i, p := range s.pages {
		out[i] = Page{IDs: append([]string(nil), p.IDs...), Offset: p.Offset, NextOffset: p.NextOffset}
	}
	return out
}

// IDs returns the ids of every page in order, first occurrence winning when
// pages overlap.
func (s *Sequence[T]) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.pages {
		for _, id := range p.IDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Items resolves IDs through the cache, skipping deleted and unknown ids.
func (s *Sequence[T]) Items() []T {
	ids := s.IDs()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, st := s.engine.cache.Get(id); st.Live() {
			out = append(out, v)
		}
	}
	return out
}

// State returns the current loading status.
func (s *Sequence[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		IsLoadingInitial: s.loadingInitial,
		IsLoadingMore:    s.loadingMore,
		IsRefetching:     s.refetching,
		Stale:            s.stale,
		Pages:            len(s.pages),
		Err:              s.err,
	}
	if n := len(s.pages); n > 0 {
		st.HasMore = s.pages[n-1].HasMore()
	}
	return st
}

// FetchNextPage loads the page after the last one, or the first page when
// none is loaded. It does nothing when the last page has no successor or a
// fetch is already running. On failure earlier pages are kept and the error
// is recorded in State.Err.
func (s *Sequence[T]) FetchNextPage(ctx context.Context) error {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return nil
	}
	offset := 0
	initial := len(s.pages) == 0
	if !initial {
		last := s.pages[len(s.pages)-1]
		if !last.HasMore() {
			s.mu.Unlock()
			return nil
		}
		offset = *last.NextOffset
	}
	s.fetching = true
	s.loadingInitial = initial
	s.loadingMore = !initial
	gen := s.generation
	s.mu.Unlock()

	page, err := s.load(ctx, offset)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	s.fetching, s.loadingInitial, s.loadingMore = false, false, false
	if err != nil {
		s.err = err
		return err
	}
	s.err = nil
	if initial {
		s.stale = false
	}
	s.pages = append(s.pages, page)
	return nil
}

// Refetch loads the first page again and, on success, replaces every page
// with it. On failure the loaded pages stay and the error is recorded in
// State.Err.
func (s *Sequence[T]) Refetch(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	initial := len(s.pages) == 0
	s.fetching = true
	s.loadingInitial, s.loadingMore, s.refetching = initial, false, !initial
	s.mu.Unlock()

	page, err := s.load(ctx, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	s.fetching, s.loadingInitial, s.refetching = false, false, false
	if err != nil {
		s.err = err
		return err
	}
	s.pages = []Page{page}
	s.stale = false
	s.err = nil
	return nil
}

// Revalidate refreshes a stale sequence. It refetches as many pages as are
// loaded, in order, and replaces them as a unit; the old pages stay visible
// until the refresh succeeds. A fresh sequence is left alone.
func (s *Sequence[T]) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	if !s.stale || s.fetching {
		s.mu.Unlock()
		return nil
	}
	if len(s.pages) == 0 {
		s.mu.Unlock()
		return s.Refetch(ctx)
	}
	s.generation++
	gen := s.generation
	want := len(s.pages)
	s.fetching, s.refetching = true, true
	s.loadingInitial, s.loadingMore = false, false
	s.mu.Unlock()

	var (
		pages  []Page
		err    error
		offset int
	)
	for i := 0; i < want; i++ {
		var p Page
		p, err = s.load(ctx, offset)
		if err != nil {
			break
		}
		pages = append(pages, p)
		if !p.HasMore() {
			break
		}
		offset = *p.NextOffset
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	s.fetching, s.refetching = false, false
	if err != nil {
		s.err = err
		return err
	}
	s.pages = pages
	s.stale = false
	s.err = nil
	return nil
}

// Invalidate marks the sequence stale; the next Revalidate refreshes it.
func (s *Sequence[T]) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// ResetToFirstPage drops every page after the first, cancels any in-flight
// fetch result and marks the sequence stale.
func (s *Sequence[T]) ResetToFirstPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) > 1 {
		s.pages = s.pages[:1]
	}
	s.generation++
	s.fetching, s.loadingInitial, s.loadingMore, s.refetching = false, false, false, false
	s.stale = true
}

func (s *Sequence[T]) removeID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for i := range s.pages {
		ids := s.pages[i].IDs
		kept := ids[:0:0]
		for _, v := range ids {
			if v == id {
				changed = true
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) != len(ids) {
			s.pages[i].IDs = kept
		}
	}
	return changed
}

// load fetches one page, writes each entity to the cache and builds the
// page from the ids that were stored.
func (s *Sequence[T]) load(ctx context.Context, offset int) (Page, error) {
	e := s.engine
	items, err := e.fetchPage(ctx, s.key, offset)
	if err != nil {
		e.cfg.Logger.Warn("page fetch failed",
			slog.String("engine", e.name),
			slog.String("key", s.id),
			slog.Int("offset", offset),
			slog.String("error", err.Error()))
		return Page{}, err
	}

	page := Page{Offset: offset, IDs: make([]string, 0, len(items))}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		id := item.EntityID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if e.cache.Refresh(id, item) {
			page.IDs = append(page.IDs, id)
		}
	}
	if len(items) == e.cfg.PageSize {
		next := offset + len(items)
		page.NextOffset = &next
	}
	return page, nil
}

// Package feed binds the region tracker to the query engine. A Feed follows
// the map viewport and keeps the question sequence of the last settled
// region observed; a Thread does the same for one question's responses.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/askaround/internal/geo"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/query"
	"github.com/onnwee/askaround/internal/region"
)

// Options configures a Feed.
type Options struct {
	QuietPeriod      time.Duration
	DisableAutoFetch bool
	FilterType       string
	FilterValue      string
	Clock            clock.Clock
	Logger           *slog.Logger
	// OnUpdate is called after each fetch the feed starts.
	OnUpdate func(query.State)
}

// Feed is the nearby questions feed. Safe for concurrent use.
type Feed struct {
	engine   *query.Engine[model.Question]
	tracker  *region.Tracker
	logger   *slog.Logger
	onUpdate func(query.State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	seq         *query.Sequence[model.Question]
	region      geo.Region
	filterType  string
	filterValue string
	closed      bool
}

// New creates a feed over engine. Fetches started by settled regions run
// under ctx until Close.
func New(ctx context.Context, engine *query.Engine[model.Question], opts Options) *Feed {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		engine:      engine,
		logger:      opts.Logger,
		onUpdate:    opts.OnUpdate,
		ctx:         ctx,
		cancel:      cancel,
		filterType:  opts.FilterType,
		filterValue: opts.FilterValue,
	}
	f.tracker = region.NewTracker(f.settle, region.Options{
		QuietPeriod:      opts.QuietPeriod,
		DisableAutoFetch: opts.DisableAutoFetch,
		Clock:            opts.Clock,
		Logger:           opts.Logger,
	})
	return f
}

// OnViewportChange forwards a raw map viewport to the tracker.
func (f *Feed) OnViewportChange(v region.Viewport) {
	f.tracker.OnViewportChange(v)
}

// SetAutoFetch toggles fetching on settled regions.
func (f *Feed) SetAutoFetch(enabled bool) {
	f.tracker.SetAutoFetch(enabled)
}

// DisplayRegion is the region drawn on the map, which follows the viewport
// without debounce.
func (f *Feed) DisplayRegion() (geo.Region, bool) {
	return f.tracker.Current()
}

// Region returns the region the current sequence was fetched for.
func (f *Feed) Region() geo.Region {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.region
}

// settle moves the feed to the sequence for r.
func (f *Feed) settle(r geo.Region) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.region = r
	f.mu.Unlock()
	f.rekey()
}

// SetFilter changes the feed filter and moves to the matching sequence for
// the current region. An empty filterType clears the filter.
func (f *Feed) SetFilter(filterType, filterValue string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if filterType == "" {
		filterValue = ""
	}
	f.filterType, f.filterValue = filterType, filterValue
	hasRegion := f.seq != nil
	f.mu.Unlock()
	if hasRegion {
		f.rekey()
	}
}

// rekey swaps the observed sequence for the current region and filter and
// loads it in the background. It does nothing once the feed is closed.
func (f *Feed) rekey() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	key := query.QuestionsKey(f.region, f.filterType, f.filterValue)
	next := f.engine.Sequence(key)
	prev := f.seq
	if prev != next {
		next.Acquire()
		f.seq = next
	}
	f.wg.Add(1)
	f.mu.Unlock()

	if prev != next {
		if prev != nil {
			prev.Release()
		}
		f.logger.Debug("feed region changed", slog.String("key", key.String()))
	}
	go f.background(next)
}

// background loads the first page of seq, or revalidates it when it was
// already loaded and is stale. The caller has added it to f.wg.
func (f *Feed) background(seq *query.Sequence[model.Question]) {
	defer f.wg.Done()
	var err error
	if seq.State().Pages == 0 {
		err = seq.FetchNextPage(f.ctx)
	} else {
		err = seq.Revalidate(f.ctx)
	}
	if err != nil {
		f.logger.Warn("feed fetch failed",
			slog.String("key", seq.Key().String()),
			slog.String("error", err.Error()))
	}
	f.notify(seq)
}

func (f *Feed) notify(seq *query.Sequence[model.Question]) {
	if f.onUpdate != nil {
		f.onUpdate(seq.State())
	}
}

func (f *Feed) current() *query.Sequence[model.Question] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// FetchNextPage loads the next page of the current sequence. It does
// nothing before the first region settles.
func (f *Feed) FetchNextPage(ctx context.Context) error {
	seq := f.current()
	if seq == nil {
		return nil
	}
	err := seq.FetchNextPage(ctx)
	f.notify(seq)
	return err
}

// Refresh revalidates the current sequence when stale, otherwise refetches
// it from the first page (pull to refresh).
func (f *Feed) Refresh(ctx context.Context) error {
	seq := f.current()
	if seq == nil {
		return nil
	}
	var err error
	if seq.State().Stale {
		err = seq.Revalidate(ctx)
	} else {
		err = seq.Refetch(ctx)
	}
	f.notify(seq)
	return err
}

// Sync revalidates the current sequence if a mutation marked it stale.
func (f *Feed) Sync(ctx context.Context) error {
	seq := f.current()
	if seq == nil || !seq.State().Stale {
		return nil
	}
	err := seq.Revalidate(ctx)
	f.notify(seq)
	return err
}

// Items returns the questions of the current sequence.
func (f *Feed) Items() []model.Question {
	if seq := f.current(); seq != nil {
		return seq.Items()
	}
	return nil
}

// State returns the loading state of the current sequence.
func (f *Feed) State() query.State {
	if seq := f.current(); seq != nil {
		return seq.State()
	}
	return query.State{}
}

// Wait blocks until background fetches started by the feed have returned.
func (f *Feed) Wait() { f.wg.Wait() }

// Close stops the tracker, cancels background fetches and releases the
// current sequence.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	seq := f.seq
	f.seq = nil
	f.mu.Unlock()

	f.tracker.Close()
	f.cancel()
	f.wg.Wait()
	if seq != nil {
		seq.Release()
	}
}

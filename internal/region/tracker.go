// Package region turns a stream of raw map viewport changes into settled
// feed regions. The display region follows the viewport immediately; a
// settled region is emitted only after the viewport has been still for the
// quiet period.
package region

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/askaround/internal/geo"
)

// DefaultQuietPeriod is how long the viewport must be still before a region
// settles.
const DefaultQuietPeriod = time.Second

// Viewport is the raw visible map area reported by the map view.
type Viewport struct {
	Center         geo.Coordinates
	LatitudeDelta  float64
	LongitudeDelta float64
}

// Region converts the viewport to a feed region: the radius is half the
// visible latitude span in miles, clamped.
func (v Viewport) Region() geo.Region {
	return geo.Region{Center: v.Center, RadiusMiles: geo.RadiusFromLatitudeDelta(v.LatitudeDelta)}
}

// SettledFunc receives each settled region. It is called from a timer
// goroutine and must not call back into the tracker synchronously.
type SettledFunc func(geo.Region)

// Options configures a Tracker.
type Options struct {
	QuietPeriod time.Duration
	// DisableAutoFetch suppresses settled events while still tracking the
	// display region.
	DisableAutoFetch bool
	Clock            clock.Clock
	Logger           *slog.Logger
}

// Tracker debounces viewport changes. Safe for concurrent use.
type Tracker struct {
	onSettled SettledFunc
	quiet     time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	current   geo.Region
	hasRegion bool
	settled   geo.Region
	autoFetch bool
	timer     *clock.Timer
	seq       uint64
	closed    bool
}

// NewTracker creates a tracker that reports settled regions to onSettled.
func NewTracker(onSettled SettledFunc, opts Options) *Tracker {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		onSettled: onSettled,
		quiet:     opts.QuietPeriod,
		clock:     opts.Clock,
		logger:    opts.Logger,
		autoFetch: !opts.DisableAutoFetch,
	}
}

// OnViewportChange records the new viewport and restarts the quiet period.
func (t *Tracker) OnViewportChange(v Viewport) {
	r := v.Region()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.current = r
	t.hasRegion = true
	t.restartLocked()
}

// restartLocked replaces the pending timer. Each timer carries a sequence
// number so a timer that fires after being superseded is ignored.
func (t *Tracker) restartLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.timer = t.clock.AfterFunc(t.quiet, func() { t.fire(seq) })
}

func (t *Tracker) fire(seq uint64) {
	t.mu.Lock()
	if t.closed || seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	r := t.current
	t.settled = r
	emit := t.autoFetch && t.onSettled != nil
	t.mu.Unlock()

	if !emit {
		return
	}
	t.logger.Debug("region settled",
		slog.Float64("latitude", r.Center.Latitude),
		slog.Float64("longitude", r.Center.Longitude),
		slog.Float64("radius_miles", r.RadiusMiles))
	t.onSettled(r)
}

// Current returns the display region, which follows the viewport without
// debounce. ok is false before the first viewport change.
func (t *Tracker) Current() (r geo.Region, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.hasRegion
}

// Settled returns the last settled region.
func (t *Tracker) Settled() geo.Region {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled
}

// SetAutoFetch toggles settled emission at runtime. Turning it back on does
// not replay regions settled while it was off.
func (t *Tracker) SetAutoFetch(enabled bool) {
	t.mu.Lock()
	t.autoFetch = enabled
	t.mu.Unlock()
}

// Pending reports whether a quiet period is running.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Close cancels any pending timer. Later viewport changes and timer fires
// are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

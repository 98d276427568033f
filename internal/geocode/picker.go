package geocode

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onnwee/askaround/internal/geo"
)

// Selection is the picker's current choice.
type Selection struct {
	Point   geo.Coordinates
	Address Address
	// PlaceID is set when the selection came from a place lookup.
	PlaceID string
	// Resolving is true while the latest lookup is in flight.
	Resolving bool
	// Err is the latest lookup failure. The point is kept and the address
	// left empty.
	Err error
}

// Picker holds the location chosen for a new question. Every selection
// starts an asynchronous lookup tagged with a sequence number; only the
// result of the latest selection is applied.
type Picker struct {
	geocoder Geocoder
	logger   *slog.Logger
	onChange func(Selection)

	mu     sync.Mutex
	seq    uint64
	sel    Selection
	closed bool
	wg     sync.WaitGroup
}

// PickerOption configures a Picker.
type PickerOption func(*Picker)

// WithPickerLogger sets the picker logger.
func WithPickerLogger(l *slog.Logger) PickerOption {
	return func(p *Picker) { p.logger = l }
}

// WithOnChange registers a callback invoked after every applied change. It
// runs on the goroutine that applied the change.
func WithOnChange(fn func(Selection)) PickerOption {
	return func(p *Picker) { p.onChange = fn }
}

// NewPicker creates a picker positioned at initial, or geo.DefaultCenter
// when initial is not a usable point.
func NewPicker(g Geocoder, initial geo.Coordinates, opts ...PickerOption) *Picker {
	p := &Picker{
		geocoder: g,
		logger:   slog.Default(),
		sel:      Selection{Point: CenterOrDefault(initial, nil)},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Select records point immediately and reverse geocodes it in the
// background. It returns the selection's sequence number.
func (p *Picker) Select(ctx context.Context, point geo.Coordinates) uint64 {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	p.seq++
	seq := p.seq
	p.sel = Selection{Point: point, Resolving: true}
	snapshot := p.sel
	p.wg.Add(1)
	p.mu.Unlock()
	p.notify(snapshot)

	go func() {
		defer p.wg.Done()
		addr, err := p.geocoder.Reverse(ctx, point)
		p.apply(seq, "reverse", func(s *Selection) {
			if err != nil {
				s.Err = err
				return
			}
			s.Address = addr
		}, err)
	}()
	return seq
}

// SelectPlace resolves placeID and moves the selection to the place. The
// current point is kept until the lookup returns.
func (p *Picker) SelectPlace(ctx context.Context, placeID string) uint64 {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	p.seq++
	seq := p.seq
	p.sel = Selection{Point: p.sel.Point, PlaceID: placeID, Resolving: true}
	snapshot := p.sel
	p.wg.Add(1)
	p.mu.Unlock()
	p.notify(snapshot)

	go func() {
		defer p.wg.Done()
		place, err := p.geocoder.PlaceDetails(ctx, placeID)
		p.apply(seq, "place_details", func(s *Selection) {
			if err != nil {
				s.Err = err
				return
			}
			s.Point = place.Location
			s.Address = place.Address
		}, err)
	}()
	return seq
}

// apply runs update if seq is still the latest selection and the picker is
// open.
func (p *Picker) apply(seq uint64, op string, update func(*Selection), err error) {
	p.mu.Lock()
	if p.closed || seq != p.seq {
		p.mu.Unlock()
		p.logger.Debug("stale picker result discarded",
			slog.String("op", op),
			slog.Uint64("seq", seq))
		return
	}
	p.sel.Resolving = false
	update(&p.sel)
	snapshot := p.sel
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("picker lookup failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
	}
	p.notify(snapshot)
}

func (p *Picker) notify(s Selection) {
	if p.onChange != nil {
		p.onChange(s)
	}
}

// Selection returns the latest point and address.
func (p *Picker) Selection() Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel
}

// Seq returns the latest selection sequence number.
func (p *Picker) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Wait blocks until every started lookup has returned.
func (p *Picker) Wait() { p.wg.Wait() }

// Close unmounts the picker. Lookups still in flight complete without
// effect and later selections are ignored.
func (p *Picker) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

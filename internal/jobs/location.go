package jobs

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/askaround/internal/geo"
	"github.com/onnwee/askaround/internal/model"
)

// LocationSource reports the device location.
type LocationSource interface {
	CurrentLocation(ctx context.Context) (geo.Coordinates, error)
}

// LocationSourceFunc adapts a function to LocationSource.
type LocationSourceFunc func(ctx context.Context) (geo.Coordinates, error)

// CurrentLocation calls f.
func (f LocationSourceFunc) CurrentLocation(ctx context.Context) (geo.Coordinates, error) {
	return f(ctx)
}

// StaticLocation always reports the same point.
type StaticLocation geo.Coordinates

// CurrentLocation returns the point.
func (s StaticLocation) CurrentLocation(context.Context) (geo.Coordinates, error) {
	return geo.Coordinates(s), nil
}

// LocationPoster sends a location update. *api.Client implements it.
type LocationPoster interface {
	UpdateLocation(ctx context.Context, u model.LocationUpdate) error
}

// NewLocationPushJob creates the job that posts the current location to
// POST /users/location every config.Interval. A run whose location is
// unavailable or invalid records an error and sends nothing.
func NewLocationPushJob(src LocationSource, poster LocationPoster, config Config) *Job {
	clk := config.Clock
	if clk == nil {
		clk = clock.New()
		config.Clock = clk
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	task := func(ctx context.Context) error {
		loc, err := src.CurrentLocation(ctx)
		if err != nil {
			return &Error{Type: ErrorTypeLocation, Err: err}
		}
		if !loc.Valid() || loc.IsZero() {
			return ErrSkipped
		}
		if err := poster.UpdateLocation(ctx, model.NewLocationUpdate(loc, clk.Now())); err != nil {
			return &Error{Type: ErrorTypeAPI, Err: err}
		}
		logger.Debug("location pushed", slog.String("point", loc.String()))
		return nil
	}
	return New(JobTypeLocationPush, task, config)
}

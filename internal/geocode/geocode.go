// Package geocode resolves coordinates to addresses and free text to places
// for the location picker. Lookups are plain request/response calls; callers
// degrade to geo.DefaultCenter or an empty address when a lookup fails.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/askaround/internal/geo"
)

var (
	// ErrMissingAPIKey is returned when no maps API key is configured.
	ErrMissingAPIKey = errors.New("maps api key is required")
	// ErrNoResults is returned when a reverse geocode or place lookup finds
	// nothing.
	ErrNoResults = errors.New("no geocoding results")
	// ErrEmptyQuery is returned for blank forward or autocomplete input.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrMissingPlaceID is returned when a place lookup has no id.
	ErrMissingPlaceID = errors.New("place id is required")
)

// StatusError is a non-OK status reported by the maps service.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("maps status %s", e.Status)
	}
	return fmt.Sprintf("maps status %s: %s", e.Status, e.Message)
}

// Address is a human readable location.
type Address struct {
	Formatted  string `json:"formatted"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == Address{} }

// Label is the short name shown on a question: "Locality, Region" when both
// components are known, otherwise the formatted address.
func (a Address) Label() string {
	switch {
	case a.Locality != "" && a.Region != "":
		return a.Locality + ", " + a.Region
	case a.Locality != "":
		return a.Locality
	default:
		return a.Formatted
	}
}

// Place is a named, geocoded location.
type Place struct {
	ID       string          `json:"place_id"`
	Name     string          `json:"name,omitempty"`
	Address  Address         `json:"address"`
	Location geo.Coordinates `json:"location"`
}

// Prediction is one autocomplete suggestion. Resolve it with PlaceDetails.
type Prediction struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	MainText      string `json:"main_text,omitempty"`
	SecondaryText string `json:"secondary_text,omitempty"`
}

// Geocoder is the lookup surface used by the picker.
type Geocoder interface {
	Reverse(ctx context.Context, c geo.Coordinates) (Address, error)
	Forward(ctx context.Context, query string) ([]Place, error)
	Autocomplete(ctx context.Context, input string, near geo.Coordinates) ([]Prediction, error)
	PlaceDetails(ctx context.Context, placeID string) (Place, error)
}

// CenterOrDefault returns c when it is a usable point, otherwise
// geo.DefaultCenter. err is the geolocation failure, if any.
func CenterOrDefault(c geo.Coordinates, err error) geo.Coordinates {
	if err != nil || c.IsZero() || !c.Valid() {
		return geo.DefaultCenter
	}
	return c
}

// ReverseOrEmpty reverse geocodes c and returns an empty address on failure.
func ReverseOrEmpty(ctx context.Context, g Geocoder, c geo.Coordinates, logger *slog.Logger) Address {
	if g == nil {
		return Address{}
	}
	addr, err := g.Reverse(ctx, c)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("reverse geocode failed",
			slog.String("point", c.String()),
			slog.String("error", err.Error()))
		return Address{}
	}
	return addr
}

// Package geo provides coordinate, region, and distance helpers shared by the
// feed, picker, and location push components.
package geo

import (
	"fmt"
	"math"
)

// Radius bounds in miles for a feed region.
const (
	MinRadiusMiles = 0.1
	MaxRadiusMiles = 50.0
)

// MilesPerDegreeLatitude approximates the length of one degree of latitude.
// It only drives the display radius and fetch breadth.
const MilesPerDegreeLatitude = 69.0

// earthRadiusMiles is the mean earth radius used by HaversineMiles.
const earthRadiusMiles = 3958.8

// DefaultCenter is the fallback map center used when geolocation is denied
// or unavailable.
var DefaultCenter = Coordinates{Latitude: 43.0731, Longitude: -89.4012}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within latitude [-90, 90] and
// longitude [-180, 180].
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// IsZero reports whether both components are zero.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Latitude, c.Longitude)
}

// Region is a circular feed area around a center point.
type Region struct {
	Center      Coordinates `json:"center"`
	RadiusMiles float64     `json:"radius_miles"`
}

// NewRegion builds a Region with the radius clamped to the allowed range.
func NewRegion(center Coordinates, radiusMiles float64) Region {
	return Region{Center: center, RadiusMiles: ClampRadius(radiusMiles)}
}

func (r Region) String() string {
	return fmt.Sprintf("%s r=%.2fmi", r.Center, r.RadiusMiles)
}

// Contains reports whether p lies within the region.
func (r Region) Contains(p Coordinates) bool {
	return HaversineMiles(r.Center, p) <= r.RadiusMiles
}

// ClampRadius limits a radius to [MinRadiusMiles, MaxRadiusMiles].
// NaN clamps to the minimum.
func ClampRadius(miles float64) float64 {
	if math.IsNaN(miles) || miles < MinRadiusMiles {
		return MinRadiusMiles
	}
	if miles > MaxRadiusMiles {
		return MaxRadiusMiles
	}
	return miles
}

// RadiusFromLatitudeDelta converts a map viewport's latitude span into a
// clamped radius: half the span, at ~69 miles per degree.
func RadiusFromLatitudeDelta(latitudeDelta float64) float64 {
	return ClampRadius(math.Abs(latitudeDelta) * MilesPerDegreeLatitude / 2)
}

// LatitudeDeltaForRadius is the inverse of RadiusFromLatitudeDelta, used to
// frame a map viewport around a region.
func LatitudeDeltaForRadius(miles float64) float64 {
	return ClampRadius(miles) * 2 / MilesPerDegreeLatitude
}

// HaversineMiles returns the great-circle distance between two points.
func HaversineMiles(a, b Coordinates) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLng := toRad(b.Longitude - a.Longitude)
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

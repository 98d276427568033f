package geo

import (
	"math"
	"testing"
)

func TestRadiusFromLatitudeDelta(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{name: "ten miles", delta: 20.0 / 69.0, want: 10},
		{name: "tiny delta clamps to min", delta: 0.0001, want: MinRadiusMiles},
		{name: "zero clamps to min", delta: 0, want: MinRadiusMiles},
		{name: "huge delta clamps to max", delta: 12, want: MaxRadiusMiles},
		{name: "negative delta uses magnitude", delta: -20.0 / 69.0, want: 10},
		{name: "NaN clamps to min", delta: math.NaN(), want: MinRadiusMiles},
		{name: "infinity clamps to max", delta: math.Inf(1), want: MaxRadiusMiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RadiusFromLatitudeDelta(tt.delta)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RadiusFromLatitudeDelta(%v) = %v, want %v", tt.delta, got, tt.want)
			}
			if got < MinRadiusMiles || got > MaxRadiusMiles {
				t.Errorf("radius %v outside [%v, %v]", got, MinRadiusMiles, MaxRadiusMiles)
			}
		})
	}
}

func TestLatitudeDeltaForRadius_RoundTrip(t *testing.T) {
	for _, miles := range []float64{0.1, 1, 10, 25, 50} {
		got := RadiusFromLatitudeDelta(LatitudeDeltaForRadius(miles))
		if math.Abs(got-miles) > 1e-9 {
			t.Errorf("round trip for %v miles = %v", miles, got)
		}
	}
}

func TestNewRegion_Clamps(t *testing.T) {
	r := NewRegion(DefaultCenter, 500)
	if r.RadiusMiles != MaxRadiusMiles {
		t.Errorf("RadiusMiles = %v, want %v", r.RadiusMiles, MaxRadiusMiles)
	}
	if r.Center != DefaultCenter {
		t.Errorf("Center = %v, want %v", r.Center, DefaultCenter)
	}
}

func TestCoordinates_Valid(t *testing.T) {
	tests := []struct {
		c    Coordinates
		want bool
	}{
		{Coordinates{0, 0}, true},
		{Coordinates{90, 180}, true},
		{Coordinates{-90, -180}, true},
		{Coordinates{90.1, 0}, false},
		{Coordinates{0, -180.5}, false},
		{Coordinates{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestHaversineMiles(t *testing.T) {
	// Madison to Milwaukee is roughly 75 miles.
	d := HaversineMiles(DefaultCenter, Coordinates{Latitude: 43.0389, Longitude: -87.9065})
	if d < 70 || d > 85 {
		t.Fatalf("unexpected distance: %v", d)
	}
	if HaversineMiles(DefaultCenter, DefaultCenter) != 0 {
		t.Fatal("distance to self should be zero")
	}
}

func TestRegion_Contains(t *testing.T) {
	r := NewRegion(DefaultCenter, 10)
	if !r.Contains(Coordinates{Latitude: 43.10, Longitude: -89.40}) {
		t.Error("nearby point should be contained")
	}
	if r.Contains(Coordinates{Latitude: 43.0389, Longitude: -87.9065}) {
		t.Error("Milwaukee should not be inside a 10 mile Madison region")
	}
}

func TestGeohash(t *testing.T) {
	got := Geohash(Coordinates{Latitude: 57.64911, Longitude: 10.40744}, 11)
	if got != "u4pruydqqvj" {
		t.Errorf("Geohash() = %q, want %q", got, "u4pruydqqvj")
	}

	if len(Geohash(DefaultCenter, 0)) != DefaultPrecision {
		t.Errorf("precision 0 should fall back to %d", DefaultPrecision)
	}

	a := Geohash(Coordinates{Latitude: 43.07310, Longitude: -89.40120}, DefaultPrecision)
	b := Geohash(Coordinates{Latitude: 43.07311, Longitude: -89.40121}, DefaultPrecision)
	if a != b {
		t.Errorf("jittered points should share a cell: %q vs %q", a, b)
	}
	if !ValidGeohash(a) {
		t.Errorf("ValidGeohash(%q) = false", a)
	}
}

func TestCoarse(t *testing.T) {
	c := Coarse(DefaultCenter)
	if len(c) != CoarsePrecision {
		t.Fatalf("Coarse() length = %d, want %d", len(c), CoarsePrecision)
	}
	if Geohash(DefaultCenter, 8)[:CoarsePrecision] != c {
		t.Error("coarse hash should be a prefix of the precise hash")
	}
}

func TestValidGeohash(t *testing.T) {
	tests := map[string]bool{
		"":       false,
		"9q8yyk": true,
		"9Q8YYK": true,
		"9q8ayk": false,
		"9q8 yk": false,
	}
	for in, want := range tests {
		if got := ValidGeohash(in); got != want {
			t.Errorf("ValidGeohash(%q) = %v, want %v", in, got, want)
		}
	}
}

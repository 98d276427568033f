package geo

import "strings"

// DefaultPrecision is the geohash length used when none is given. Six
// characters is roughly a 1.2 km x 0.6 km cell.
const DefaultPrecision = 6

// KeyPrecision is the geohash length used for sequence keys. Twelve
// characters is a cell of a few centimetres, far below the smallest region
// radius, so two regions share a key only when their centers coincide.
const KeyPrecision = 12

// CoarsePrecision is used when a location is written to logs.
const CoarsePrecision = 4

// base32 is the geohash base32 alphabet (no 'a', 'i', 'l', 'o').
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes c with the given precision. A precision below 1 falls back
// to DefaultPrecision.
func Geohash(c Coordinates, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var sb strings.Builder
	sb.Grow(precision)

	bits := 0
	var ch uint
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if c.Longitude > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if c.Latitude > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++
		if bits == 5 {
			sb.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return sb.String()
}

// Coarse returns a short geohash suitable for logs, so exact user positions
// never reach log output.
func Coarse(c Coordinates) string {
	return Geohash(c, CoarsePrecision)
}

// ValidGeohash reports whether s is non-empty and uses only geohash characters.
func ValidGeohash(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if !strings.ContainsRune(base32, r) {
			return false
		}
	}
	return true
}

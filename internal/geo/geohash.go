package geo

import "strings"

// CoarsePrecision is the geohash length used when displaying a sighting's
// neighborhood rather than its exact spot. Six characters is roughly
// ±0.61 km, enough to find the area without pinpointing a doorstep.
const CoarsePrecision = 6

// base32 is the geohash base32 alphabet (excludes a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode encodes a point into a geohash string of the given precision
// using the standard interleaved base32 algorithm.
func Encode(p Point, precision int) string {
	if precision < 1 {
		precision = CoarsePrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var hash strings.Builder
	hash.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for hash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			// >= keeps boundary values in the upper cell, matching the
			// canonical encoding (0,0 -> "s000...").
			if p.Lng >= mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if p.Lat >= mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			hash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return hash.String()
}

// EncodeCoarse encodes a point at CoarsePrecision.
func EncodeCoarse(p Point) string {
	return Encode(p, CoarsePrecision)
}

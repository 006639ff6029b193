// Package geo provides geolocation utilities for sighting coordinates:
// a named point type, great-circle distance, and geohash encoding for
// coarse display.
package geo

import "math"

// Point is a geographic coordinate in degrees.
//
// It is the only coordinate representation used in-process. The wire and
// storage formats use [lng, lat] arrays per GeoJSON convention; conversion
// happens exactly once at each boundary so the two orderings never mix.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point has finite coordinates within the
// valid latitude/longitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return false
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// FromCoordinates builds a Point from a [lng, lat] wire-order pair.
func FromCoordinates(coords [2]float64) Point {
	return Point{Lat: coords[1], Lng: coords[0]}
}

// Coordinates returns the point in [lng, lat] wire order.
func (p Point) Coordinates() [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

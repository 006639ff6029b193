package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distance.
const EarthRadiusKm = 6371.0

// Distance computes the great-circle distance between two points in
// kilometers using the haversine formula.
//
// The result is deterministic for identical inputs, symmetric
// (Distance(a, b) == Distance(b, a)), and zero within floating-point
// tolerance for identical points.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// toRadians converts degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Locatable is anything with a geographic position.
type Locatable interface {
	Position() Point
}

// SortByDistance stably sorts items by ascending distance from the
// reference point. Used when a result set is assembled from sources that
// have no spatial index of their own.
func SortByDistance[T Locatable](items []T, from Point) {
	sort.SliceStable(items, func(i, j int) bool {
		return Distance(from, items[i].Position()) < Distance(from, items[j].Position())
	})
}

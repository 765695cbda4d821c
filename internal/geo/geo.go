// Package geo provides great-circle distance calculations.
package geo

import (
	"math"

	"github.com/nvallinder/audiowalk/internal/model"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// Distance returns the haversine distance between two coordinates in
// meters. Returns NaN when either coordinate is invalid; callers treat
// NaN as "not in range".
func Distance(a, b model.Coordinates) float64 {
	if !a.Valid() || !b.Valid() {
		return math.NaN()
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// Within reports whether the distance between two coordinates is at
// most radius meters. NaN distances are never within range.
func Within(a, b model.Coordinates, radius float64) bool {
	d := Distance(a, b)
	return !math.IsNaN(d) && d <= radius
}

package model

import "time"

// LocationSample is a single fix from the location collaborator.
type LocationSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"` // radius in meters
	Timestamp time.Time `json:"timestamp"`
}

// Coords returns the sample position as Coordinates.
func (s LocationSample) Coords() Coordinates {
	return Coordinates{Lat: s.Lat, Lng: s.Lng}
}

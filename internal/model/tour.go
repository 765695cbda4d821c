// Package model defines the core data structures for audiowalk.
package model

import (
	"math"
)

// Stop categories.
const (
	CategoryInfo     = "info"
	CategoryNarrated = "narrated-stop"
	CategoryBonus    = "bonus"
)

// ValidCategories is the set of recognised stop categories.
var ValidCategories = map[string]bool{
	CategoryInfo:     true,
	CategoryNarrated: true,
	CategoryBonus:    true,
}

// Coordinates is a WGS 84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Valid reports whether the coordinates are usable for distance
// calculations. NaN, infinite, and out-of-range values disqualify a
// stop from proximity consideration without erroring.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	if math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Tour is an ordered sequence of stops. Stop order is authoritative and
// fixed once loaded.
type Tour struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Stops []Stop `yaml:"stops" json:"stops"`
}

// Stop is a single waypoint in a tour with associated narration audio.
type Stop struct {
	ID       string      `yaml:"id" json:"id"`
	Title    string      `yaml:"title" json:"title"`
	Category string      `yaml:"category" json:"category"`
	Position Coordinates `yaml:"position" json:"position"`

	// Trigger is an optional coordinate distinct from the display
	// position, used for proximity detection. Zero value falls back
	// to Position.
	Trigger *Coordinates `yaml:"trigger,omitempty" json:"trigger,omitempty"`

	// AudioURL is the remote audio reference.
	AudioURL string `yaml:"audio_url" json:"audio_url"`

	// OfflineAudio is an optional path inside an offline package.
	OfflineAudio string `yaml:"offline_audio,omitempty" json:"offline_audio,omitempty"`

	// Played is session-local and never persisted.
	Played bool `yaml:"-" json:"-"`
}

// TriggerCoords returns the coordinates used for proximity detection,
// falling back to the display position when no distinct trigger point
// is set.
func (s *Stop) TriggerCoords() Coordinates {
	if s.Trigger != nil {
		return *s.Trigger
	}
	return s.Position
}

// StopByID returns the stop with the given id and its index, or nil.
func (t *Tour) StopByID(id string) (*Stop, int) {
	for i := range t.Stops {
		if t.Stops[i].ID == id {
			return &t.Stops[i], i
		}
	}
	return nil, -1
}

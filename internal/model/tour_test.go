package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates_Valid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 52.5, Lng: 13.4}.Valid())
	assert.True(t, Coordinates{Lat: -90, Lng: 180}.Valid())

	assert.False(t, Coordinates{Lat: math.NaN(), Lng: 13.4}.Valid())
	assert.False(t, Coordinates{Lat: 52.5, Lng: math.Inf(-1)}.Valid())
	assert.False(t, Coordinates{Lat: 90.01, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -180.5}.Valid())
}

func TestStop_TriggerCoords(t *testing.T) {
	s := Stop{Position: Coordinates{Lat: 1, Lng: 2}}
	assert.Equal(t, Coordinates{Lat: 1, Lng: 2}, s.TriggerCoords())

	s.Trigger = &Coordinates{Lat: 3, Lng: 4}
	assert.Equal(t, Coordinates{Lat: 3, Lng: 4}, s.TriggerCoords())
}

func TestTour_StopByID(t *testing.T) {
	tour := Tour{
		ID: "t1",
		Stops: []Stop{
			{ID: "a"},
			{ID: "b"},
		},
	}

	stop, idx := tour.StopByID("b")
	assert.NotNil(t, stop)
	assert.Equal(t, 1, idx)

	stop, idx = tour.StopByID("missing")
	assert.Nil(t, stop)
	assert.Equal(t, -1, idx)
}

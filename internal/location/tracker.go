// Package location supplies location samples and converts them into
// discrete stop-entry triggers.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/nvallinder/audiowalk/internal/model"
)

// ErrPermissionDenied indicates location permission was refused or
// services are disabled. Tracking simply does not start and proximity
// features degrade to manual-only.
var ErrPermissionDenied = errors.New("location permission denied")

// Options configures the cadence requested from a tracker: a sample
// is delivered every Interval or every DisplacementM meters, whichever
// comes first.
type Options struct {
	Interval      time.Duration
	DisplacementM float64
}

// Callback receives location samples from a tracker.
type Callback func(model.LocationSample)

// Tracker is the external location collaborator.
type Tracker interface {
	// RequestPermissions asks for location access.
	RequestPermissions(ctx context.Context) error

	// Start begins delivering samples to cb.
	Start(ctx context.Context, cb Callback, opts Options) error

	// Stop ends tracking.
	Stop() error
}

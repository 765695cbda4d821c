package location

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/nvallinder/audiowalk/internal/geo"
	"github.com/nvallinder/audiowalk/internal/guide"
	"github.com/nvallinder/audiowalk/internal/model"
)

// Default monitor tuning.
const (
	DefaultThresholdM       = 100.0
	DefaultHysteresisFactor = 2.0
	DefaultMinAccuracyM     = 50.0
)

// Triggerer accepts stop-entry triggers. Satisfied by the playback
// controller.
type Triggerer interface {
	Trigger(ctx context.Context, stop *model.Stop, index int, locationTriggered bool) error
}

// SampleObserver receives every accepted sample. Satisfied by the
// auto-advance scheduler, which uses it to re-arm a gated countdown.
type SampleObserver interface {
	Observe(sample model.LocationSample)
}

// Monitor converts a stream of location samples into discrete "enter
// stop" events: at most one trigger per visit, with single-slot
// hysteresis against re-triggering.
type Monitor struct {
	logger   *slog.Logger
	tour     *model.Tour
	trigger  Triggerer
	observer SampleObserver // may be nil

	enabled          bool
	thresholdM       float64
	hysteresisFactor float64
	minAccuracyM     float64

	// inFlight is the reentrancy guard: held while a triggered
	// playback attempt settles.
	inFlight atomic.Bool

	mu            sync.Mutex
	lastTriggered string // stop id suppressed until out of the hysteresis band
	lastSample    *model.LocationSample
}

// NewMonitor creates a proximity monitor for the tour. enabled mirrors
// the auto-play-by-location setting; a disabled monitor still records
// samples for the scheduler's gate but never triggers.
func NewMonitor(tour *model.Tour, trigger Triggerer, enabled bool, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:           logger,
		tour:             tour,
		trigger:          trigger,
		enabled:          enabled,
		thresholdM:       DefaultThresholdM,
		hysteresisFactor: DefaultHysteresisFactor,
		minAccuracyM:     DefaultMinAccuracyM,
	}
}

// SetThreshold sets the proximity threshold in meters.
func (m *Monitor) SetThreshold(meters float64) {
	if meters > 0 {
		m.thresholdM = meters
	}
}

// SetHysteresisFactor sets the multiple of the threshold beyond which
// a triggered stop's suppression clears.
func (m *Monitor) SetHysteresisFactor(factor float64) {
	if factor > 1 {
		m.hysteresisFactor = factor
	}
}

// SetMinAccuracy sets the coarsest acceptable sample accuracy radius.
func (m *Monitor) SetMinAccuracy(meters float64) {
	if meters > 0 {
		m.minAccuracyM = meters
	}
}

// SetObserver installs the accepted-sample observer.
func (m *Monitor) SetObserver(o SampleObserver) {
	m.observer = o
}

// Threshold returns the proximity threshold in meters.
func (m *Monitor) Threshold() float64 {
	return m.thresholdM
}

// LastSample returns the most recent accepted sample, if any.
func (m *Monitor) LastSample() (model.LocationSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSample == nil {
		return model.LocationSample{}, false
	}
	return *m.lastSample, true
}

// OnLocationUpdate processes one sample from the tracker. Failures in
// the triggered playback path are swallowed here: ambient walking is
// never interrupted by an alert.
func (m *Monitor) OnLocationUpdate(ctx context.Context, sample model.LocationSample) {
	if sample.Accuracy > m.minAccuracyM {
		m.logger.Debug("sample discarded, accuracy too coarse", "accuracy", sample.Accuracy)
		return
	}

	m.mu.Lock()
	m.lastSample = &sample
	m.clearSuppressionLocked(sample)
	m.mu.Unlock()

	// The scheduler sees every accepted sample, even when
	// location triggering itself is disabled.
	if m.observer != nil {
		m.observer.Observe(sample)
	}

	if !m.enabled {
		return
	}

	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.inFlight.Store(false)

	stop, index, ok := m.nearestInRange(sample)
	if !ok {
		return
	}

	m.mu.Lock()
	suppressed := stop.ID == m.lastTriggered
	m.mu.Unlock()
	if suppressed {
		return
	}

	err := m.trigger.Trigger(ctx, stop, index, true)
	if err != nil {
		if errors.Is(err, guide.ErrLockContention) {
			// Another transition is settling; leave the stop
			// unsuppressed so a later sample can retry.
			m.logger.Debug("location trigger dropped, lock contention", "stop", stop.ID)
			return
		}
		m.logger.Warn("location-triggered playback failed", "stop", stop.ID, "error", err)
	}

	m.mu.Lock()
	m.lastTriggered = stop.ID
	m.mu.Unlock()
}

// clearSuppressionLocked clears the last-triggered suppression once
// the user has left the hysteresis band. Caller holds m.mu.
func (m *Monitor) clearSuppressionLocked(sample model.LocationSample) {
	if m.lastTriggered == "" {
		return
	}
	stop, _ := m.tour.StopByID(m.lastTriggered)
	if stop == nil {
		m.lastTriggered = ""
		return
	}
	d := geo.Distance(sample.Coords(), stop.TriggerCoords())
	if !math.IsNaN(d) && d > m.thresholdM*m.hysteresisFactor {
		m.logger.Debug("hysteresis cleared", "stop", m.lastTriggered, "distance", d)
		m.lastTriggered = ""
	}
}

// nearestInRange selects the stop with minimum distance within the
// proximity threshold. Stops with invalid coordinates are skipped
// without erroring.
func (m *Monitor) nearestInRange(sample model.LocationSample) (*model.Stop, int, bool) {
	var best *model.Stop
	bestIndex := -1
	bestDist := math.Inf(1)

	pos := sample.Coords()
	for i := range m.tour.Stops {
		stop := &m.tour.Stops[i]
		d := geo.Distance(pos, stop.TriggerCoords())
		if math.IsNaN(d) || d > m.thresholdM {
			continue
		}
		if d < bestDist {
			best = stop
			bestIndex = i
			bestDist = d
		}
	}

	return best, bestIndex, best != nil
}

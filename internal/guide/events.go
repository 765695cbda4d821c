// Package guide drives tour playback: a single-session playback
// controller and a proximity-gated auto-advance scheduler.
package guide

import (
	"time"

	"github.com/nvallinder/audiowalk/internal/model"
	"github.com/nvallinder/audiowalk/internal/progress"
)

// State is the playback controller state.
type State int

const (
	// StateIdle means no session is loaded.
	StateIdle State = iota
	// StateLoading means a trigger is resolving audio or creating a
	// session.
	StateLoading
	// StatePlaying means the session is audible.
	StatePlaying
	// StatePaused means the session is loaded but paused.
	StatePaused
)

// String returns a short state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// EventType identifies a controller event.
type EventType int

const (
	// EventStopStarted fires when a stop's narration starts.
	EventStopStarted EventType = iota
	// EventAudioUnavailable fires when a manual trigger could not
	// resolve audio.
	EventAudioUnavailable
	// EventPlaybackFailed fires when session creation or playback
	// start failed on a manual trigger.
	EventPlaybackFailed
	// EventCountdownTick fires once per auto-advance countdown tick.
	EventCountdownTick
	// EventCountdownCancelled fires when a pending countdown or
	// proximity wait is cleared.
	EventCountdownCancelled
	// EventMoveCloser advises that auto-advance is waiting for the
	// user to come within range of the next stop.
	EventMoveCloser
	// EventStopCompleted fires after a completion record is written.
	EventStopCompleted
	// EventTourCompleted fires when the final stop's narration
	// finishes.
	EventTourCompleted
)

// Event is a discrete controller occurrence, fanned out to
// subscribers.
type Event struct {
	Type      EventType
	StopID    string
	StopIndex int

	// Remaining countdown ticks, for EventCountdownTick.
	Remaining int

	// Stats accompanies EventStopCompleted and EventTourCompleted.
	Stats progress.Stats

	Err error
}

// Snapshot is the observable playback state, safe to read from the UI
// at any time.
type Snapshot struct {
	State     State
	StopIndex int
	Stop      model.Stop

	// Position and Duration default to 0 when not yet known.
	Position time.Duration
	Duration time.Duration

	// CountdownRemaining is the visible auto-advance countdown,
	// 0 when none is pending.
	CountdownRemaining int

	// AwaitingProximity is true while auto-advance waits for the
	// user to come within range of the next stop.
	AwaitingProximity bool

	Stats progress.Stats

	HasNext     bool
	HasPrevious bool

	// Completed reports whether the current stop is recorded
	// complete.
	Completed bool
}

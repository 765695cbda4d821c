package guide

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nvallinder/audiowalk/internal/model"
)

// DefaultCountdownTicks is the auto-advance countdown length.
const DefaultCountdownTicks = 5

// GateFunc reports whether the auto-advance countdown may start for
// the next stop. A nil gate always allows.
type GateFunc func(next *model.Stop) bool

// Scheduler decides whether and when to auto-advance to the next stop
// after the current one finishes. It owns the only cancellable
// background operation in the guide: the countdown timer.
type Scheduler struct {
	logger *slog.Logger

	ticks        int
	tickInterval time.Duration

	gate   GateFunc
	expire func(stop *model.Stop, index int)
	emit   func(Event)

	mu        sync.Mutex
	remaining int
	cancelCh  chan struct{}

	// waiting is set when the gate rejected the countdown and a
	// move-closer advisory was raised; Observe re-arms it.
	waiting      bool
	pendingStop  *model.Stop
	pendingIndex int
}

// newScheduler creates a scheduler. expire is invoked on countdown
// expiry; emit publishes events to the controller's subscribers.
func newScheduler(ticks int, expire func(*model.Stop, int), emit func(Event), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if ticks <= 0 {
		ticks = DefaultCountdownTicks
	}
	return &Scheduler{
		logger:       logger,
		ticks:        ticks,
		tickInterval: time.Second,
		expire:       expire,
		emit:         emit,
	}
}

// SetTicks sets the countdown length. Values below one are ignored.
func (s *Scheduler) SetTicks(ticks int) {
	if ticks <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = ticks
}

// SetTickInterval sets the countdown tick duration.
func (s *Scheduler) SetTickInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickInterval = interval
}

// SetGate installs the proximity gate. A nil gate disables gating.
func (s *Scheduler) SetGate(gate GateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
}

// StartCountdown arms the auto-advance countdown for the given next
// stop. With a gate installed and the user out of range, no timer is
// created; a move-closer advisory is raised instead and Observe
// re-invokes the countdown once in range. A nil stop is a no-op.
func (s *Scheduler) StartCountdown(stop *model.Stop, index int) {
	if stop == nil {
		return
	}

	s.mu.Lock()
	s.cancelLocked()

	if s.gate != nil && !s.gate(stop) {
		s.waiting = true
		s.pendingStop = stop
		s.pendingIndex = index
		s.mu.Unlock()

		s.logger.Debug("next stop out of range, waiting for proximity", "stop", stop.ID)
		s.emit(Event{Type: EventMoveCloser, StopID: stop.ID, StopIndex: index})
		return
	}

	ticks := s.ticks
	s.remaining = ticks
	ch := make(chan struct{})
	s.cancelCh = ch
	interval := s.tickInterval
	s.mu.Unlock()

	s.emit(Event{Type: EventCountdownTick, StopID: stop.ID, StopIndex: index, Remaining: ticks})
	go s.run(stop, index, ch, interval)
}

// run counts down and invokes expire. The countdown is abandoned as
// soon as its cancel channel is closed or superseded.
func (s *Scheduler) run(stop *model.Stop, index int, ch chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ch:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.cancelCh != ch {
				s.mu.Unlock()
				return
			}
			s.remaining--
			rem := s.remaining
			if rem > 0 {
				s.mu.Unlock()
				s.emit(Event{Type: EventCountdownTick, StopID: stop.ID, StopIndex: index, Remaining: rem})
				continue
			}
			s.cancelCh = nil
			s.remaining = 0
			s.mu.Unlock()

			s.logger.Debug("countdown expired, advancing", "stop", stop.ID)
			s.expire(stop, index)
			return
		}
	}
}

// Observe feeds an accepted location sample. If a gated countdown is
// waiting and the user is now in range, the countdown starts.
func (s *Scheduler) Observe(sample model.LocationSample) {
	s.mu.Lock()
	if !s.waiting || s.pendingStop == nil {
		s.mu.Unlock()
		return
	}
	stop := s.pendingStop
	index := s.pendingIndex
	gate := s.gate
	s.mu.Unlock()

	if gate != nil && !gate(stop) {
		return
	}

	s.mu.Lock()
	// Re-check: a Cancel may have raced the gate evaluation.
	if !s.waiting || s.pendingStop != stop {
		s.mu.Unlock()
		return
	}
	s.waiting = false
	s.pendingStop = nil
	s.mu.Unlock()

	s.StartCountdown(stop, index)
}

// Cancel clears any pending countdown or proximity wait. Safe to call
// redundantly.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	hadPending := s.cancelCh != nil || s.waiting
	s.cancelLocked()
	s.mu.Unlock()

	if hadPending {
		s.emit(Event{Type: EventCountdownCancelled})
	}
}

// cancelLocked clears countdown state. Caller holds s.mu.
func (s *Scheduler) cancelLocked() {
	if s.cancelCh != nil {
		close(s.cancelCh)
		s.cancelCh = nil
	}
	s.remaining = 0
	s.waiting = false
	s.pendingStop = nil
	s.pendingIndex = 0
}

// Remaining returns the visible countdown ticks, 0 when none.
func (s *Scheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Waiting reports whether a move-closer advisory is pending.
func (s *Scheduler) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

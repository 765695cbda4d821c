package guide

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/nvallinder/audiowalk/internal/audio"
	"github.com/nvallinder/audiowalk/internal/model"
	"github.com/nvallinder/audiowalk/internal/progress"
)

// Errors returned by controller operations.
var (
	// ErrLockContention indicates a trigger arrived while another
	// transition was in flight. Dropped silently by callers, never
	// surfaced to the user.
	ErrLockContention = errors.New("playback transition in flight")

	// ErrAudioUnavailable indicates no audio source could serve the
	// stop. Surfaced to the user only on manual triggers.
	ErrAudioUnavailable = errors.New("audio unavailable")

	// ErrPlaybackStart indicates the audio session could not be
	// created or started.
	ErrPlaybackStart = errors.New("playback failed to start")
)

// AudioResolver resolves a stop to a locally playable path.
type AudioResolver interface {
	Resolve(ctx context.Context, tourID string, stop *model.Stop) (string, error)
	Prefetch(ctx context.Context, tourID string, stops ...*model.Stop)
}

// Controller owns the single audio session for a loaded tour. A
// boolean transition lock serializes the stop-then-start path: any
// trigger arriving while a transition is in flight is rejected
// outright, never queued.
type Controller struct {
	logger   *slog.Logger
	engine   audio.Engine
	resolver AudioResolver
	tracker  progress.Tracker
	tour     *model.Tour

	autoPlay bool
	sched    *Scheduler

	// transition is the single-flight lock guarding
	// stop-resolve-start.
	transition atomic.Bool

	mu        sync.Mutex
	state     State
	current   int
	session   audio.Session
	sessionID string
	completed map[string]bool // completed-set cache for the loaded tour

	subMu       sync.Mutex
	subscribers []chan Event
	closed      bool
}

// NewController creates a controller for the tour. The completed set
// is hydrated from the tracker so completion flags survive restarts.
func NewController(tour *model.Tour, engine audio.Engine, res AudioResolver, tracker progress.Tracker, autoPlay bool, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		logger:    logger,
		engine:    engine,
		resolver:  res,
		tracker:   tracker,
		tour:      tour,
		autoPlay:  autoPlay,
		state:     StateIdle,
		completed: make(map[string]bool),
	}

	c.sched = newScheduler(DefaultCountdownTicks, c.onCountdownExpired, c.publish, logger)
	c.refreshCompleted()
	return c
}

// Scheduler returns the auto-advance scheduler for gate wiring and
// sample observation.
func (c *Controller) Scheduler() *Scheduler {
	return c.sched
}

// SetCountdownTicks overrides the auto-advance countdown length.
func (c *Controller) SetCountdownTicks(ticks int) {
	c.sched.SetTicks(ticks)
}

// Tour returns the loaded tour.
func (c *Controller) Tour() *model.Tour {
	return c.tour
}

// Trigger starts playback of the given stop, tearing down any
// existing session first. Rejects with ErrLockContention while
// another transition is in flight. Location-triggered failures are
// logged and swallowed by callers; manual failures additionally emit
// a user-facing event here.
func (c *Controller) Trigger(ctx context.Context, stop *model.Stop, index int, locationTriggered bool) error {
	if stop == nil || index < 0 || index >= len(c.tour.Stops) {
		return fmt.Errorf("invalid stop index %d", index)
	}

	if !c.transition.CompareAndSwap(false, true) {
		c.logger.Debug("trigger rejected, transition in flight", "stop", stop.ID)
		return ErrLockContention
	}
	defer c.transition.Store(false)

	// A new stop supersedes any pending auto-advance.
	c.sched.Cancel()

	// Tear down the previous session entirely before creating the
	// next one: listener detach, stop, release.
	c.teardown()

	c.setState(StateLoading)

	path, err := c.resolver.Resolve(ctx, c.tour.ID, stop)
	if err != nil {
		c.setState(StateIdle)
		if locationTriggered {
			c.logger.Debug("location-triggered resolution failed", "stop", stop.ID, "error", err)
		} else {
			c.logger.Warn("audio unavailable", "stop", stop.ID, "error", err)
			c.publish(Event{Type: EventAudioUnavailable, StopID: stop.ID, StopIndex: index, Err: err})
		}
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}

	sess, err := c.engine.Open(path)
	if err != nil {
		c.setState(StateIdle)
		if locationTriggered {
			c.logger.Debug("location-triggered session creation failed", "stop", stop.ID, "error", err)
		} else {
			c.logger.Warn("failed to create audio session", "stop", stop.ID, "error", err)
			c.publish(Event{Type: EventPlaybackFailed, StopID: stop.ID, StopIndex: index, Err: err})
		}
		return fmt.Errorf("%w: %v", ErrPlaybackStart, err)
	}

	id := ulid.MustNew(ulid.Now(), rand.Reader).String()
	sess.OnFinished(func() { c.onSessionFinished(id) })

	if err := sess.Play(); err != nil {
		sess.Close()
		c.setState(StateIdle)
		if !locationTriggered {
			c.publish(Event{Type: EventPlaybackFailed, StopID: stop.ID, StopIndex: index, Err: err})
		}
		return fmt.Errorf("%w: %v", ErrPlaybackStart, err)
	}

	c.mu.Lock()
	c.session = sess
	c.sessionID = id
	c.current = index
	c.state = StatePlaying
	c.tour.Stops[index].Played = true
	c.mu.Unlock()

	c.logger.Info("stop started", "stop", stop.ID, "index", index, "location_triggered", locationTriggered)
	c.publish(Event{Type: EventStopStarted, StopID: stop.ID, StopIndex: index})

	// Warm the cache for this stop's successor, off the lock path.
	if next, ok := c.peekNext(index); ok {
		go c.resolver.Prefetch(context.WithoutCancel(ctx), c.tour.ID, next)
	}

	return nil
}

// Toggle pauses a playing session, resumes a paused one, and behaves
// like a trigger for the current stop when no session exists. A no-op
// while another transition holds the lock.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	index := c.current
	c.mu.Unlock()

	if sess == nil {
		return c.Trigger(ctx, &c.tour.Stops[index], index, false)
	}

	if !c.transition.CompareAndSwap(false, true) {
		return ErrLockContention
	}
	defer c.transition.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		// Finished between the check and the lock.
		return nil
	}
	if c.session.Playing() {
		c.session.Pause()
		c.state = StatePaused
	} else {
		c.session.Resume()
		c.state = StatePlaying
	}
	return nil
}

// Stop tears down any session, clears pending auto-advance, and
// returns to idle.
func (c *Controller) Stop() error {
	if !c.transition.CompareAndSwap(false, true) {
		return ErrLockContention
	}
	defer c.transition.Store(false)

	c.sched.Cancel()
	c.teardown()
	c.setState(StateIdle)
	return nil
}

// Next manually advances to the next stop. No-op at the last stop.
func (c *Controller) Next(ctx context.Context) error {
	c.sched.Cancel()

	c.mu.Lock()
	index := c.current
	c.mu.Unlock()

	next, ok := c.peekNext(index)
	if !ok {
		return nil
	}
	return c.Trigger(ctx, next, index+1, false)
}

// Previous manually returns to the prior stop. No-op at the first.
func (c *Controller) Previous(ctx context.Context) error {
	c.sched.Cancel()

	c.mu.Lock()
	index := c.current
	c.mu.Unlock()

	if index == 0 {
		return nil
	}
	return c.Trigger(ctx, &c.tour.Stops[index-1], index-1, false)
}

// Select manually plays the stop at index, cancelling any countdown.
func (c *Controller) Select(ctx context.Context, index int) error {
	if index < 0 || index >= len(c.tour.Stops) {
		return fmt.Errorf("invalid stop index %d", index)
	}
	c.sched.Cancel()
	return c.Trigger(ctx, &c.tour.Stops[index], index, false)
}

// ForceNext skips the proximity gate and immediately triggers the
// next stop.
func (c *Controller) ForceNext(ctx context.Context) error {
	return c.Next(ctx)
}

// teardown detaches the finish listener, stops, and releases the
// current session. Errors from an already-released session are
// ignored.
func (c *Controller) teardown() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.sessionID = ""
	c.mu.Unlock()

	if sess == nil {
		return
	}

	sess.OnFinished(nil)
	sess.Pause()
	if err := sess.Close(); err != nil {
		c.logger.Debug("session close", "error", err)
	}
}

// onSessionFinished handles a narration playing to its natural end.
// Stale callbacks from superseded sessions are ignored via the
// session id.
func (c *Controller) onSessionFinished(sessionID string) {
	c.mu.Lock()
	if c.sessionID != sessionID || c.session == nil {
		c.mu.Unlock()
		return
	}
	sess := c.session
	c.session = nil
	c.sessionID = ""
	index := c.current
	c.state = StateIdle
	c.mu.Unlock()

	stop := &c.tour.Stops[index]

	if err := sess.Close(); err != nil {
		c.logger.Debug("finished session close", "error", err)
	}

	// Completion recording is deliberately separate from playback
	// state: a write failure leaves the stop unmarked so a later
	// finish can record it.
	c.mu.Lock()
	done := c.completed[stop.ID]
	c.mu.Unlock()
	if !done {
		if err := c.tracker.MarkCompleted(c.tour.ID, stop.ID); err != nil {
			c.logger.Warn("completion write failed, stop left unmarked", "stop", stop.ID, "error", err)
		} else {
			c.refreshCompleted()
			c.publish(Event{Type: EventStopCompleted, StopID: stop.ID, StopIndex: index, Stats: c.Stats()})
		}
	}

	next, ok := c.peekNext(index)
	if !ok {
		stats := c.Stats()
		c.logger.Info("tour completed", "tour", c.tour.ID, "completed", stats.Completed, "total", stats.Total)
		c.publish(Event{Type: EventTourCompleted, StopID: stop.ID, StopIndex: index, Stats: stats})
		return
	}

	if !c.autoPlay {
		return
	}

	// The handoff to the scheduler must be ordered against manual
	// transitions: a user selection between the finish and this point
	// supersedes auto-advance. Take the transition lock so no trigger
	// can interleave with the staleness check, and skip the handoff
	// when one already holds it.
	if !c.transition.CompareAndSwap(false, true) {
		c.logger.Debug("auto-advance skipped, transition in flight", "stop", stop.ID)
		return
	}
	defer c.transition.Store(false)

	c.mu.Lock()
	stale := c.session != nil || c.current != index
	c.mu.Unlock()
	if stale {
		c.logger.Debug("auto-advance skipped, superseded by a newer selection", "stop", stop.ID)
		return
	}

	c.sched.StartCountdown(next, index+1)
}

// onCountdownExpired is the scheduler's expiry hook. Auto-advance
// failures are absorbed like any location-path failure.
func (c *Controller) onCountdownExpired(stop *model.Stop, index int) {
	if err := c.Trigger(context.Background(), stop, index, false); err != nil {
		c.logger.Warn("auto-advance trigger failed", "stop", stop.ID, "error", err)
	}
}

// peekNext returns the stop after index, if any.
func (c *Controller) peekNext(index int) (*model.Stop, bool) {
	if index+1 >= len(c.tour.Stops) {
		return nil, false
	}
	return &c.tour.Stops[index+1], true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// refreshCompleted re-reads the completed set from the tracker.
func (c *Controller) refreshCompleted() {
	ids := c.tracker.CompletedForTour(c.tour.ID)
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	c.mu.Lock()
	c.completed = set
	c.mu.Unlock()
}

// Stats returns completion statistics for the loaded tour.
func (c *Controller) Stats() progress.Stats {
	c.mu.Lock()
	n := 0
	for i := range c.tour.Stops {
		if c.completed[c.tour.Stops[i].ID] {
			n++
		}
	}
	total := len(c.tour.Stops)
	c.mu.Unlock()
	return progress.ComputeStats(n, total)
}

// Snapshot returns the observable playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		State:       c.state,
		StopIndex:   c.current,
		Stop:        c.tour.Stops[c.current],
		HasNext:     c.current+1 < len(c.tour.Stops),
		HasPrevious: c.current > 0,
		Completed:   c.completed[c.tour.Stops[c.current].ID],
	}
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		snap.Position = sess.Position()
		snap.Duration = sess.Duration()
	}

	snap.CountdownRemaining = c.sched.Remaining()
	snap.AwaitingProximity = c.sched.Waiting()
	snap.Stats = c.Stats()
	return snap
}

// Subscribe returns a channel receiving controller events. Events are
// dropped, never blocked on, when a subscriber falls behind.
func (c *Controller) Subscribe() <-chan Event {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Event, 16)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Close stops playback and closes subscriber channels.
func (c *Controller) Close() {
	c.sched.Cancel()
	c.teardown()
	c.setState(StateIdle)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}

// publish sends an event to all subscribers without blocking.
func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.closed {
		return
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber full, drop.
		}
	}
}

package audio

import (
	"log/slog"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// beepSession is a Session backed by a beep streamer on the shared
// speaker.
type beepSession struct {
	logger *slog.Logger

	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format

	ctrl   *beep.Ctrl
	volume *effects.Volume

	// finished is cleared by Close so a stopped session never fires.
	finished func()
	fired    bool

	started bool
	closed  bool
}

func newBeepSession(f *os.File, streamer beep.StreamSeekCloser, format beep.Format, rate beep.SampleRate, volume float64, logger *slog.Logger) *beepSession {
	var src beep.Streamer = streamer
	if format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, src)
	}

	ctrl := &beep.Ctrl{Streamer: src}
	vol := &effects.Volume{
		Streamer: ctrl,
		Base:     2,
		Volume:   volumeToDecibels(volume),
		Silent:   volume == 0,
	}

	return &beepSession{
		logger:   logger,
		file:     f,
		streamer: streamer,
		format:   format,
		ctrl:     ctrl,
		volume:   vol,
	}
}

// OnFinished registers the natural-end callback.
func (s *beepSession) OnFinished(fn func()) {
	speaker.Lock()
	s.finished = fn
	speaker.Unlock()
}

// Play starts output. The finish callback is scheduled behind the
// stream so it fires exactly when the narration drains.
func (s *beepSession) Play() error {
	speaker.Lock()
	if s.closed {
		speaker.Unlock()
		return nil
	}
	if s.started {
		// Restart means resume in practice; a fresh session is
		// created per trigger.
		s.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}
	s.started = true
	speaker.Unlock()

	speaker.Play(beep.Seq(s.volume, beep.Callback(func() {
		// Runs on the speaker goroutine.
		fn := s.finished
		if fn != nil && !s.fired {
			s.fired = true
			go fn()
		}
	})))
	return nil
}

// Pause pauses output.
func (s *beepSession) Pause() {
	speaker.Lock()
	if !s.closed {
		s.ctrl.Paused = true
	}
	speaker.Unlock()
}

// Resume resumes paused output.
func (s *beepSession) Resume() {
	speaker.Lock()
	if !s.closed {
		s.ctrl.Paused = false
	}
	speaker.Unlock()
}

// Playing reports whether output is currently audible.
func (s *beepSession) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return s.started && !s.closed && !s.ctrl.Paused
}

// Position returns the current playback position.
func (s *beepSession) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if s.closed {
		return 0
	}
	return s.format.SampleRate.D(s.streamer.Position())
}

// Duration returns the total narration duration.
func (s *beepSession) Duration() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if s.closed {
		return 0
	}
	return s.format.SampleRate.D(s.streamer.Len())
}

// Close detaches the callback, silences the stream, and releases the
// decoder and file. Safe to call on an already-closed session.
func (s *beepSession) Close() error {
	speaker.Lock()
	if s.closed {
		speaker.Unlock()
		return nil
	}
	s.closed = true
	s.finished = nil
	// Detaching the streamer drains the Seq silently; the callback
	// may still run but finds no handler.
	s.ctrl.Streamer = nil
	speaker.Unlock()

	err := s.streamer.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

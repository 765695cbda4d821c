// Package audio provides narration audio playback sessions.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Session is a single loaded narration. At most one live session
// exists at a time; the playback controller enforces that.
type Session interface {
	// Play starts or restarts output.
	Play() error

	// Pause pauses output.
	Pause()

	// Resume resumes paused output.
	Resume()

	// Playing reports whether output is currently audible.
	Playing() bool

	// Position returns the current playback position.
	Position() time.Duration

	// Duration returns the total narration duration.
	Duration() time.Duration

	// OnFinished registers a callback fired once when the narration
	// plays to its natural end. Stopping the session does not fire it.
	OnFinished(fn func())

	// Close detaches the callback, stops output, and releases the
	// session's resources. Safe to call more than once.
	Close() error
}

// Engine creates playback sessions from local audio files.
type Engine interface {
	Open(path string) (Session, error)
}

// BeepEngine implements Engine on the beep speaker. The speaker is
// initialized once at a fixed rate; sources at other rates are
// resampled.
type BeepEngine struct {
	mu     sync.Mutex
	logger *slog.Logger

	volume      float64 // 0.0 to 1.0
	sampleRate  beep.SampleRate
	initialized bool
}

// NewBeepEngine creates a new engine.
func NewBeepEngine(logger *slog.Logger) *BeepEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeepEngine{
		logger:     logger,
		volume:     1.0,
		sampleRate: beep.SampleRate(44100),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (e *BeepEngine) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	e.volume = volume
}

// Open decodes the file at path and returns a stopped session ready
// to play.
func (e *BeepEngine) Open(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	if err := e.ensureInitialized(); err != nil {
		streamer.Close()
		f.Close()
		return nil, err
	}

	e.mu.Lock()
	volume := e.volume
	rate := e.sampleRate
	e.mu.Unlock()

	return newBeepSession(f, streamer, format, rate, volume, e.logger), nil
}

// ensureInitialized initializes the speaker if not already done.
func (e *BeepEngine) ensureInitialized() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	bufferSize := e.sampleRate.N(time.Millisecond * 100)
	if err := speaker.Init(e.sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	e.initialized = true
	e.logger.Debug("speaker initialized", "sample_rate", e.sampleRate)
	return nil
}

// Close shuts down the speaker.
func (e *BeepEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		speaker.Close()
		e.initialized = false
	}
}

// volumeToDecibels converts a linear volume (0-1) to decibels.
func volumeToDecibels(volume float64) float64 {
	if volume <= 0 {
		return -100 // effectively silent
	}
	return 20 * math.Log10(volume)
}

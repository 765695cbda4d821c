package location

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nvallinder/audiowalk/internal/model"
)

// ReplayTracker replays a JSONL file of location samples, one object
// per line, preserving the recorded cadence. Used for dry runs of a
// tour without walking it.
type ReplayTracker struct {
	logger *slog.Logger
	path   string

	// speed scales replay: 2.0 plays back twice as fast.
	speed float64

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewReplayTracker creates a tracker replaying samples from path.
func NewReplayTracker(path string, logger *slog.Logger) *ReplayTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayTracker{
		logger: logger,
		path:   path,
		speed:  1.0,
	}
}

// SetSpeed sets the replay speed multiplier.
func (t *ReplayTracker) SetSpeed(speed float64) {
	if speed > 0 {
		t.speed = speed
	}
}

// RequestPermissions always succeeds for replay.
func (t *ReplayTracker) RequestPermissions(ctx context.Context) error {
	return nil
}

// Start reads the sample file and delivers samples at the recorded
// cadence. Samples without timestamps fall back to opts.Interval.
func (t *ReplayTracker) Start(ctx context.Context, cb Callback, opts Options) error {
	samples, err := t.load()
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.mu.Unlock()

	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	go t.replay(ctx, samples, cb, interval, stopCh)
	return nil
}

func (t *ReplayTracker) replay(ctx context.Context, samples []model.LocationSample, cb Callback, interval time.Duration, stopCh chan struct{}) {
	var prev time.Time
	for _, sample := range samples {
		wait := interval
		if !prev.IsZero() && !sample.Timestamp.IsZero() {
			if d := sample.Timestamp.Sub(prev); d > 0 {
				wait = time.Duration(float64(d) / t.speed)
			}
		}
		prev = sample.Timestamp

		select {
		case <-time.After(wait):
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}

		cb(sample)
	}
	t.logger.Info("sample replay finished", "path", t.path, "samples", len(samples))
}

// load parses the JSONL sample file.
func (t *ReplayTracker) load() ([]model.LocationSample, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample file: %w", err)
	}
	defer f.Close()

	var samples []model.LocationSample
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var s model.LocationSample
		if err := json.Unmarshal(data, &s); err != nil {
			t.logger.Warn("skipping malformed sample", "line", line, "error", err)
			continue
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("sample file %s contains no samples", t.path)
	}
	return samples, nil
}

// Stop ends the replay.
func (t *ReplayTracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	close(t.stopCh)
	return nil
}

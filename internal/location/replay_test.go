package location

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallinder/audiowalk/internal/model"
)

func writeSampleFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walk.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReplayTracker_DeliversAllSamples(t *testing.T) {
	path := writeSampleFile(t,
		`{"lat": 59.3251, "lng": 18.0711, "accuracy": 5}`,
		`{"lat": 59.3260, "lng": 18.0720, "accuracy": 8}`,
		`{"lat": 59.3270, "lng": 18.0730, "accuracy": 4}`,
	)

	tr := NewReplayTracker(path, nil)
	t.Cleanup(func() { tr.Stop() })

	var mu sync.Mutex
	var got []model.LocationSample
	cb := func(s model.LocationSample) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	}

	require.NoError(t, tr.RequestPermissions(context.Background()))
	require.NoError(t, tr.Start(context.Background(), cb, Options{Interval: time.Millisecond}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.InDelta(t, 59.3251, got[0].Lat, 1e-9)
	assert.InDelta(t, 18.0730, got[2].Lng, 1e-9)
}

func TestReplayTracker_SkipsMalformedLines(t *testing.T) {
	path := writeSampleFile(t,
		`{"lat": 1, "lng": 2, "accuracy": 5}`,
		`this is not json`,
		``,
		`{"lat": 3, "lng": 4, "accuracy": 5}`,
	)

	tr := NewReplayTracker(path, nil)
	t.Cleanup(func() { tr.Stop() })

	var mu sync.Mutex
	count := 0
	require.NoError(t, tr.Start(context.Background(), func(model.LocationSample) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}, Options{Interval: time.Millisecond}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, time.Millisecond)
}

func TestReplayTracker_EmptyFile(t *testing.T) {
	path := writeSampleFile(t, `not json at all`)

	tr := NewReplayTracker(path, nil)
	err := tr.Start(context.Background(), func(model.LocationSample) {}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no samples")
}

func TestReplayTracker_MissingFile(t *testing.T) {
	tr := NewReplayTracker(filepath.Join(t.TempDir(), "absent.jsonl"), nil)
	err := tr.Start(context.Background(), func(model.LocationSample) {}, Options{})
	require.Error(t, err)
}

func TestReplayTracker_StopHaltsDelivery(t *testing.T) {
	path := writeSampleFile(t,
		`{"lat": 1, "lng": 2, "accuracy": 5}`,
		`{"lat": 3, "lng": 4, "accuracy": 5}`,
	)

	tr := NewReplayTracker(path, nil)
	require.NoError(t, tr.Start(context.Background(), func(model.LocationSample) {
		t.Error("callback fired after stop")
	}, Options{Interval: time.Hour}))

	require.NoError(t, tr.Stop())
	require.NoError(t, tr.Stop())

	time.Sleep(10 * time.Millisecond)
}

func TestReplayTracker_SpeedIgnoresNonPositive(t *testing.T) {
	tr := NewReplayTracker("unused", nil)
	tr.SetSpeed(0)
	assert.Equal(t, 1.0, tr.speed)
	tr.SetSpeed(-2)
	assert.Equal(t, 1.0, tr.speed)
	tr.SetSpeed(4)
	assert.Equal(t, 4.0, tr.speed)
}

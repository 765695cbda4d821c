package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeToDecibels(t *testing.T) {
	assert.InDelta(t, 0.0, volumeToDecibels(1.0), 0.001)
	assert.InDelta(t, -6.02, volumeToDecibels(0.5), 0.01)
	assert.InDelta(t, -20.0, volumeToDecibels(0.1), 0.001)

	// Zero and below clamp to silence.
	assert.Equal(t, -100.0, volumeToDecibels(0))
	assert.Equal(t, -100.0, volumeToDecibels(-0.5))
}

func TestBeepEngine_SetVolumeClamps(t *testing.T) {
	e := NewBeepEngine(nil)

	e.SetVolume(1.7)
	assert.Equal(t, 1.0, e.volume)

	e.SetVolume(-0.3)
	assert.Equal(t, 0.0, e.volume)

	e.SetVolume(0.42)
	assert.Equal(t, 0.42, e.volume)
}

func TestBeepEngine_OpenRejectsUnknownFormat(t *testing.T) {
	e := NewBeepEngine(nil)

	path := filepath.Join(t.TempDir(), "clip.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := e.Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestBeepEngine_OpenMissingFile(t *testing.T) {
	e := NewBeepEngine(nil)

	_, err := e.Open(filepath.Join(t.TempDir(), "absent.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open audio file")
}

func TestBeepEngine_OpenBadData(t *testing.T) {
	e := NewBeepEngine(nil)

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a wav"), 0o644))

	_, err := e.Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode audio")
}

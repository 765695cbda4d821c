package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallinder/audiowalk/internal/model"
)

func audioServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("fake-mp3-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_DownloadsAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := audioServer(t, &hits)

	cacheDir := t.TempDir()
	r := New(cacheDir, nil, nil)

	stop := &model.Stop{ID: "fountain", AudioURL: srv.URL + "/audio/fountain.mp3"}

	path, err := r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "old-town", "fountain.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(data))

	// Second resolution reuses the cache, no second download.
	again, err := r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolve_AdoptsExistingCacheFile(t *testing.T) {
	cacheDir := t.TempDir()
	dest := filepath.Join(cacheDir, "old-town", "plaque.ogg")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("cached"), 0644))

	// A fresh resolver with no recorded entries finds the file from a
	// previous run without hitting the network.
	r := New(cacheDir, nil, nil)
	stop := &model.Stop{ID: "plaque", AudioURL: "https://unreachable.invalid/plaque.ogg"}

	path, err := r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.Equal(t, dest, path)
}

func TestResolve_OfflinePreferred(t *testing.T) {
	var hits atomic.Int64
	srv := audioServer(t, &hits)

	offlineRoot := t.TempDir()
	offlinePath := filepath.Join(offlineRoot, "old-town", "audio", "fountain.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(offlinePath), 0755))
	require.NoError(t, os.WriteFile(offlinePath, []byte("bundled"), 0644))

	cacheDir := t.TempDir()
	// A cache entry exists too; offline still wins.
	cached := filepath.Join(cacheDir, "old-town", "fountain.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(cached), 0755))
	require.NoError(t, os.WriteFile(cached, []byte("cached"), 0644))

	r := New(cacheDir, NewDirOfflineSource(offlineRoot, nil), nil)
	stop := &model.Stop{ID: "fountain", AudioURL: srv.URL + "/fountain.mp3"}

	path, err := r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.Equal(t, offlinePath, path)
	assert.Equal(t, int64(0), hits.Load())
}

func TestResolve_NoSource(t *testing.T) {
	r := New(t.TempDir(), nil, nil)
	stop := &model.Stop{ID: "silent"}

	_, err := r.Resolve(context.Background(), "old-town", stop)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestResolve_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := New(t.TempDir(), nil, nil)
	stop := &model.Stop{ID: "gone", AudioURL: srv.URL + "/gone.mp3"}

	_, err := r.Resolve(context.Background(), "old-town", stop)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestPrefetch_BestEffort(t *testing.T) {
	var hits atomic.Int64
	srv := audioServer(t, &hits)

	cacheDir := t.TempDir()
	r := New(cacheDir, nil, nil)

	good := &model.Stop{ID: "a", AudioURL: srv.URL + "/a.mp3"}
	bad := &model.Stop{ID: "b"} // no source; must not abort the warm-up

	r.Prefetch(context.Background(), "old-town", bad, good, nil)

	assert.Equal(t, int64(1), hits.Load())
	_, err := os.Stat(filepath.Join(cacheDir, "old-town", "a.mp3"))
	assert.NoError(t, err)
}

func TestResolve_CoalescesConcurrentDownloads(t *testing.T) {
	var hits atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		close(started)
		<-release
		w.Write([]byte("fake-mp3-bytes"))
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	r := New(cacheDir, nil, nil)
	stop := &model.Stop{ID: "fountain", AudioURL: srv.URL + "/audio/fountain.mp3"}

	type result struct {
		path string
		err  error
	}
	results := make(chan result, 2)

	go func() {
		p, err := r.Resolve(context.Background(), "old-town", stop)
		results <- result{p, err}
	}()

	// The second call starts while the first download is in flight and
	// must wait on it rather than fetch again.
	<-started
	go func() {
		p, err := r.Resolve(context.Background(), "old-town", stop)
		results <- result{p, err}
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	want := filepath.Join(cacheDir, "old-town", "fountain.mp3")
	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, want, res.path)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolve_AdoptionOrderIsDeterministic(t *testing.T) {
	cacheDir := t.TempDir()
	dir := filepath.Join(cacheDir, "old-town")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plaque.ogg"), []byte("ogg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plaque.mp3"), []byte("mp3"), 0644))

	// With files for two extensions on disk, every run adopts the
	// same one.
	stop := &model.Stop{ID: "plaque", AudioURL: "https://unreachable.invalid/plaque.ogg"}
	for i := 0; i < 3; i++ {
		r := New(cacheDir, nil, nil)
		path, err := r.Resolve(context.Background(), "old-town", stop)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "plaque.mp3"), path)
	}
}

func TestResolve_DeclaredOfflineAudio(t *testing.T) {
	var hits atomic.Int64
	srv := audioServer(t, &hits)

	declared := filepath.Join(t.TempDir(), "fountain.mp3")
	require.NoError(t, os.WriteFile(declared, []byte("declared"), 0644))

	r := New(t.TempDir(), nil, nil)
	stop := &model.Stop{
		ID:           "fountain",
		AudioURL:     srv.URL + "/audio/fountain.mp3",
		OfflineAudio: declared,
	}

	path, err := r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.Equal(t, declared, path)
	assert.Equal(t, int64(0), hits.Load())

	// A declared path missing on disk falls through to download.
	stop.OfflineAudio = filepath.Join(t.TempDir(), "gone.mp3")
	path, err = r.Resolve(context.Background(), "old-town", stop)
	require.NoError(t, err)
	assert.NotEqual(t, stop.OfflineAudio, path)
	assert.Equal(t, int64(1), hits.Load())
}

func TestExtensionForURL(t *testing.T) {
	cases := map[string]string{
		"https://x.test/audio/a.mp3":         "mp3",
		"https://x.test/audio/a.M4A":         "m4a",
		"https://x.test/audio/a.aac?sig=abc": "aac",
		"https://x.test/audio/a.wav":         "wav",
		"https://x.test/audio/a.ogg":         "ogg",
		"https://x.test/audio/a.flac":        "mp3", // unsupported -> default
		"https://x.test/audio/stream":        "mp3",
		"://not a url":                       "mp3",
	}

	for url, want := range cases {
		assert.Equal(t, want, ExtensionForURL(url), "url %s", url)
	}
}

func TestDirOfflineSource_Rescan(t *testing.T) {
	root := t.TempDir()
	s := NewDirOfflineSource(root, nil)

	assert.False(t, s.HasTour("old-town"))
	assert.Equal(t, "", s.AudioPath("old-town", "fountain"))

	audioDir := filepath.Join(root, "old-town", "audio")
	require.NoError(t, os.MkdirAll(audioDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "fountain.mp3"), []byte("x"), 0644))

	s.rescan()
	assert.True(t, s.HasTour("old-town"))
	assert.Equal(t, filepath.Join(audioDir, "fountain.mp3"), s.AudioPath("old-town", "fountain"))
	assert.Equal(t, "", s.AudioPath("old-town", "missing"))
}

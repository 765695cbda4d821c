// Package resolver maps tour stops to locally playable audio files.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nvallinder/audiowalk/internal/model"
)

// ErrNoAudio is returned when a stop has no offline path, no cache
// entry, and no remote reference, or when the download fails. Callers
// treat it as "audio unavailable".
var ErrNoAudio = errors.New("no audio available for stop")

// DefaultExtension is used when the source extension cannot be
// determined.
const DefaultExtension = "mp3"

// extensionProbeOrder lists the audio container extensions the cache
// recognises, in the order deterministic paths are probed. With files
// for more than one extension on disk, the first match wins.
var extensionProbeOrder = []string{"mp3", "m4a", "aac", "wav", "ogg"}

// supportedExtensions is the set form of extensionProbeOrder.
var supportedExtensions = func() map[string]bool {
	set := make(map[string]bool, len(extensionProbeOrder))
	for _, ext := range extensionProbeOrder {
		set[ext] = true
	}
	return set
}()

// OfflineSource supplies bundled local audio paths from a
// pre-downloaded offline package, when one exists for the tour.
type OfflineSource interface {
	// AudioPath returns the bundled audio path for a stop, or ""
	// when the package or the stop's audio is absent.
	AudioPath(tourID, stopID string) string
}

// Resolver resolves stop audio offline-first, with a
// download-and-cache fallback. Cache entries are never invalidated
// automatically.
type Resolver struct {
	logger   *slog.Logger
	cacheDir string
	offline  OfflineSource // may be nil
	client   *http.Client

	mu      sync.Mutex
	entries map[string]string // tourID/stopID -> local path

	// inflight coalesces concurrent downloads for the same stop so a
	// prefetch and a trigger never fetch twice.
	inflight map[string]chan struct{}
}

// New creates a Resolver writing downloads under cacheDir.
// offline may be nil when no offline packages are configured.
func New(cacheDir string, offline OfflineSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		logger:   logger,
		cacheDir: cacheDir,
		offline:  offline,
		client:   http.DefaultClient,
		entries:  make(map[string]string),
		inflight: make(map[string]chan struct{}),
	}
}

// SetHTTPClient replaces the HTTP client used for downloads.
func (r *Resolver) SetHTTPClient(c *http.Client) {
	r.client = c
}

// Resolve returns a locally playable path for the stop's audio.
//
// Resolution order: offline package, existing cache entry confirmed on
// disk, on-demand download of the remote reference. Returns ErrNoAudio
// when no source can serve the stop.
func (r *Resolver) Resolve(ctx context.Context, tourID string, stop *model.Stop) (string, error) {
	// 1. Offline audio wins when present: a path declared in the
	// manifest, then the tour's offline package.
	if stop.OfflineAudio != "" {
		if _, err := os.Stat(stop.OfflineAudio); err == nil {
			return stop.OfflineAudio, nil
		}
		r.logger.Warn("declared offline audio missing on disk", "tour", tourID, "stop", stop.ID, "path", stop.OfflineAudio)
	}
	if r.offline != nil {
		if p := r.offline.AudioPath(tourID, stop.ID); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
			r.logger.Warn("offline audio listed but missing on disk", "tour", tourID, "stop", stop.ID, "path", p)
		}
	}

	// 2. Existing cache entry, confirmed on disk.
	if p, ok := r.cached(tourID, stop.ID); ok {
		return p, nil
	}

	// 3. Download the remote reference.
	if stop.AudioURL == "" {
		return "", ErrNoAudio
	}
	p, err := r.download(ctx, tourID, stop)
	if err != nil {
		r.logger.Warn("audio download failed", "tour", tourID, "stop", stop.ID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	return p, nil
}

// Prefetch warms the cache for the given stops. Best-effort: errors
// are logged and ignored, and nothing here touches the playback path.
func (r *Resolver) Prefetch(ctx context.Context, tourID string, stops ...*model.Stop) {
	for _, stop := range stops {
		if stop == nil {
			continue
		}
		if _, err := r.Resolve(ctx, tourID, stop); err != nil {
			r.logger.Debug("prefetch skipped", "tour", tourID, "stop", stop.ID, "error", err)
		}
	}
}

// cached returns the recorded entry for a stop if its file is still
// present on disk. A deterministic path that exists but was never
// recorded (e.g. from a previous run) is adopted as an entry.
func (r *Resolver) cached(tourID, stopID string) (string, bool) {
	r.mu.Lock()
	p, ok := r.entries[cacheKey(tourID, stopID)]
	r.mu.Unlock()

	if ok {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
		return "", false
	}

	// No entry recorded this session; probe the deterministic paths.
	for _, ext := range extensionProbeOrder {
		candidate := filepath.Join(r.cacheDir, tourID, stopID+"."+ext)
		if _, err := os.Stat(candidate); err == nil {
			r.record(tourID, stopID, candidate)
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) record(tourID, stopID, path string) {
	r.mu.Lock()
	r.entries[cacheKey(tourID, stopID)] = path
	r.mu.Unlock()
}

// download fetches the stop's remote audio into the tour-scoped cache
// directory, writing to a temp file first so a cache entry is only
// ever a complete file.
func (r *Resolver) download(ctx context.Context, tourID string, stop *model.Stop) (string, error) {
	key := cacheKey(tourID, stop.ID)

	// Coalesce concurrent downloads for the same stop.
	r.mu.Lock()
	if ch, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if p, ok := r.cached(tourID, stop.ID); ok {
			return p, nil
		}
		return "", ErrNoAudio
	}
	ch := make(chan struct{})
	r.inflight[key] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
		close(ch)
	}()

	dir := filepath.Join(r.cacheDir, tourID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	dest := filepath.Join(dir, stop.ID+"."+ExtensionForURL(stop.AudioURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stop.AudioURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid audio url: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("audio download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, "."+stop.ID+"-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("audio download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	r.record(tourID, stop.ID, dest)
	r.logger.Debug("cached stop audio", "tour", tourID, "stop", stop.ID, "path", dest)
	return dest, nil
}

// ExtensionForURL infers the audio file extension from a remote
// reference, defaulting to mp3 when undetermined.
func ExtensionForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultExtension
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if supportedExtensions[ext] {
		return ext
	}
	return DefaultExtension
}

func cacheKey(tourID, stopID string) string {
	return tourID + "/" + stopID
}

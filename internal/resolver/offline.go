package resolver

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirOfflineSource serves audio from offline packages laid out as
// <root>/<tourID>/audio/<stopID>.<ext>. A package is a pre-downloaded
// bundle of a tour's assets; its lifecycle (download, manual clear) is
// owned by the offline-download collaborator, this type only reads.
type DirOfflineSource struct {
	mu     sync.RWMutex
	logger *slog.Logger
	root   string

	// tours present under root; refreshed by the watcher when
	// packages appear or disappear.
	tours map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewDirOfflineSource creates a source rooted at dir and scans it for
// existing packages.
func NewDirOfflineSource(dir string, logger *slog.Logger) *DirOfflineSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DirOfflineSource{
		logger: logger,
		root:   dir,
		tours:  make(map[string]bool),
		done:   make(chan struct{}),
	}
	s.rescan()
	return s
}

// AudioPath returns the bundled audio path for a stop, or "" when the
// package or the file is absent.
func (s *DirOfflineSource) AudioPath(tourID, stopID string) string {
	s.mu.RLock()
	present := s.tours[tourID]
	s.mu.RUnlock()

	if !present {
		return ""
	}

	audioDir := filepath.Join(s.root, tourID, "audio")
	for _, ext := range extensionProbeOrder {
		candidate := filepath.Join(audioDir, stopID+"."+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// HasTour reports whether an offline package exists for the tour.
func (s *DirOfflineSource) HasTour(tourID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tours[tourID]
}

// rescan rebuilds the package set from the filesystem.
func (s *DirOfflineSource) rescan() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		// Missing root just means no packages yet.
		s.mu.Lock()
		s.tours = make(map[string]bool)
		s.mu.Unlock()
		return
	}

	tours := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			tours[e.Name()] = true
		}
	}

	s.mu.Lock()
	s.tours = tours
	s.mu.Unlock()
}

// Start begins watching the package root so newly downloaded packages
// become available without a restart.
func (s *DirOfflineSource) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.watcher = watcher
	s.running = true
	s.mu.Unlock()

	// The root may not exist until the first package is downloaded.
	if err := watcher.Add(s.root); err != nil {
		s.logger.Debug("offline package root not watchable yet", "dir", s.root, "error", err)
	}

	go s.watch()
	return nil
}

func (s *DirOfflineSource) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.logger.Debug("offline package root changed, rescanning", "event", event.Op.String())
				s.rescan()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("offline package watcher error", "error", err)

		case <-s.done:
			return
		}
	}
}

// Stop stops the package watcher.
func (s *DirOfflineSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)
	return s.watcher.Close()
}

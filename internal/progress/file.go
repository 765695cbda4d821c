package progress

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SchemaVersion is the current progress file schema version.
const SchemaVersion = 1

// ErrTrackerClosed is returned when using a closed tracker.
var ErrTrackerClosed = errors.New("progress tracker is closed")

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	AudiowalkSchemaVersion int   `json:"audiowalk_schema_version"`
	CreatedAt              int64 `json:"created_at"`
}

// FileTracker implements Tracker using an append-only JSONL file.
// One record per completion event; duplicates are filtered on write,
// not on load, so a file produced by concurrent writers still hydrates
// to a correct set.
type FileTracker struct {
	mu     sync.RWMutex
	path   string
	file   *os.File
	closed bool

	// (tourID, stopID) -> completed
	completed map[string]map[string]bool
	records   []CompletionRecord
}

// NewFileTracker opens or creates the progress file at path and
// hydrates the completed set from it.
func NewFileTracker(path string) (*FileTracker, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}

	t := &FileTracker{
		path:      path,
		completed: make(map[string]map[string]bool),
	}

	if err := t.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress file: %w", err)
	}
	t.file = file

	// New file gets a schema header
	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		if err := t.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return t, nil
}

func (t *FileTracker) writeHeader() error {
	header := schemaHeader{
		AudiowalkSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	}
	data, err := json.Marshal(header)
	if err != nil {
		return err
	}
	_, err = t.file.Write(append(data, '\n'))
	return err
}

// load reads existing records into the completed set.
func (t *FileTracker) load() error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.AudiowalkSchemaVersion > 0 {
				continue // header line
			}
		}

		var rec CompletionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Skip corrupt lines rather than losing the whole file
			continue
		}
		if rec.TourID == "" || rec.StopID == "" {
			continue
		}
		if !t.completed[rec.TourID][rec.StopID] {
			t.records = append(t.records, rec)
		}
		t.markLocal(rec.TourID, rec.StopID)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read progress file: %w", err)
	}
	return nil
}

func (t *FileTracker) markLocal(tourID, stopID string) {
	stops, ok := t.completed[tourID]
	if !ok {
		stops = make(map[string]bool)
		t.completed[tourID] = stops
	}
	stops[stopID] = true
}

// IsCompleted reports whether the stop has been completed.
func (t *FileTracker) IsCompleted(tourID, stopID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed[tourID][stopID]
}

// MarkCompleted appends a completion record. Already-completed pairs
// are skipped without touching the file.
func (t *FileTracker) MarkCompleted(tourID, stopID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTrackerClosed
	}

	if t.completed[tourID][stopID] {
		return nil
	}

	rec := CompletionRecord{
		ID:          ulid.MustNew(ulid.Now(), rand.Reader).String(),
		TourID:      tourID,
		StopID:      stopID,
		CompletedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := t.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append completion record: %w", err)
	}
	if err := t.file.Sync(); err != nil {
		return err
	}

	t.markLocal(tourID, stopID)
	t.records = append(t.records, rec)
	return nil
}

// RecordsForTour returns the completion records for a tour in write
// order.
func (t *FileTracker) RecordsForTour(tourID string) []CompletionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var recs []CompletionRecord
	for _, r := range t.records {
		if r.TourID == tourID {
			recs = append(recs, r)
		}
	}
	return recs
}

// CompletedForTour returns the completed stop ids for a tour.
func (t *FileTracker) CompletedForTour(tourID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stops := t.completed[tourID]
	ids := make([]string, 0, len(stops))
	for id := range stops {
		ids = append(ids, id)
	}
	return ids
}

// Close releases the file handle.
func (t *FileTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// Package progress records and aggregates stop completion.
package progress

import (
	"time"
)

// Tracker records stop completion. Implementations must make
// MarkCompleted idempotent per (tour, stop) pair.
type Tracker interface {
	// IsCompleted reports whether the stop has been completed.
	IsCompleted(tourID, stopID string) bool

	// MarkCompleted records a completion event. Recording an already
	// completed stop is a no-op.
	MarkCompleted(tourID, stopID string) error

	// CompletedForTour returns the completed stop ids for a tour.
	CompletedForTour(tourID string) []string

	// Close releases resources.
	Close() error
}

// CompletionRecord is a single persisted completion event.
type CompletionRecord struct {
	ID          string    `json:"id"`
	TourID      string    `json:"tour_id"`
	StopID      string    `json:"stop_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Stats summarises completion for a loaded tour.
type Stats struct {
	Completed  int
	Total      int
	Percentage int
}

// ComputeStats derives completion statistics from a completed count
// and a stop total.
func ComputeStats(completed, total int) Stats {
	s := Stats{Completed: completed, Total: total}
	if total > 0 {
		s.Percentage = completed * 100 / total
	}
	return s
}

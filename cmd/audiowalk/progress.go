package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvallinder/audiowalk/internal/tour"
)

var progressCmd = &cobra.Command{
	Use:   "progress <tour.yaml>",
	Short: "Show completion progress for a tour",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	t, err := tour.Load(args[0])
	if err != nil {
		return err
	}

	records := tracker.RecordsForTour(t.ID)
	completedAt := make(map[string]string, len(records))
	for _, r := range records {
		completedAt[r.StopID] = humanize.Time(r.CompletedAt)
	}

	completed := 0
	for i := range t.Stops {
		stop := &t.Stops[i]
		if when, ok := completedAt[stop.ID]; ok {
			completed++
			fmt.Printf("  [x] %-24s %s\n", stop.ID, when)
		} else {
			fmt.Printf("  [ ] %s\n", stop.ID)
		}
	}

	pct := 0
	if len(t.Stops) > 0 {
		pct = completed * 100 / len(t.Stops)
	}
	fmt.Printf("\n%s: %d/%d stops (%d%%)\n", t.Title, completed, len(t.Stops), pct)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvallinder/audiowalk/internal/resolver"
	"github.com/nvallinder/audiowalk/internal/tour"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <tour.yaml>",
	Short: "Download a tour's audio into the local cache",
	Long: `Download every stop's narration audio into the local cache so the
tour can be walked without network access. Stops already cached or
covered by an offline package are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	t, err := tour.Load(args[0])
	if err != nil {
		return err
	}

	var offline resolver.OfflineSource
	if cfg.Offline.Dir != "" {
		offline = resolver.NewDirOfflineSource(cfg.Offline.Dir, logger)
	}
	res := resolver.New(cfg.CachePath(), offline, logger)

	ctx := cmd.Context()
	var total uint64
	fetched := 0
	failed := 0

	for i := range t.Stops {
		stop := &t.Stops[i]
		path, err := res.Resolve(ctx, t.ID, stop)
		if err != nil {
			failed++
			fmt.Printf("  %-24s unavailable\n", stop.ID)
			continue
		}
		fetched++
		if info, err := os.Stat(path); err == nil {
			total += uint64(info.Size())
			fmt.Printf("  %-24s %s\n", stop.ID, humanize.Bytes(uint64(info.Size())))
		}
	}

	fmt.Printf("\n%d/%d stops cached (%s)\n", fetched, len(t.Stops), humanize.Bytes(total))
	if failed > 0 {
		return fmt.Errorf("%d stops have no available audio", failed)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvallinder/audiowalk/internal/audio"
	"github.com/nvallinder/audiowalk/internal/geo"
	"github.com/nvallinder/audiowalk/internal/guide"
	"github.com/nvallinder/audiowalk/internal/location"
	"github.com/nvallinder/audiowalk/internal/model"
	"github.com/nvallinder/audiowalk/internal/mpris"
	"github.com/nvallinder/audiowalk/internal/resolver"
	"github.com/nvallinder/audiowalk/internal/tour"
	"github.com/nvallinder/audiowalk/internal/tui"
)

var guideOpts struct {
	replayFile  string
	replaySpeed float64
	noAutoPlay  bool
	noLocation  bool
	mpris       bool
}

var guideCmd = &cobra.Command{
	Use:   "guide <tour.yaml>",
	Short: "Run a tour with automatic narration",
	Long: `Run a walking tour. Narration starts automatically when you come
within range of a stop and advances after a short countdown.

Without a live location source, use --replay to feed recorded samples,
or drive playback manually with the keyboard.`,
	Args: cobra.ExactArgs(1),
	RunE: runGuide,
}

func init() {
	rootCmd.AddCommand(guideCmd)

	guideCmd.Flags().StringVar(&guideOpts.replayFile, "replay", "",
		"Replay location samples from a JSONL file")
	guideCmd.Flags().Float64Var(&guideOpts.replaySpeed, "replay-speed", 1.0,
		"Replay speed multiplier")
	guideCmd.Flags().BoolVar(&guideOpts.noAutoPlay, "no-auto-play", false,
		"Disable automatic advance to the next stop")
	guideCmd.Flags().BoolVar(&guideOpts.noLocation, "no-location", false,
		"Disable location-based triggering and gating")
	guideCmd.Flags().BoolVar(&guideOpts.mpris, "mpris", true,
		"Expose playback controls over MPRIS")
}

func runGuide(cmd *cobra.Command, args []string) error {
	t, err := tour.Load(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Offline packages win over cache and network when configured.
	var offline resolver.OfflineSource
	if cfg.Offline.Dir != "" {
		src := resolver.NewDirOfflineSource(cfg.Offline.Dir, logger)
		if err := src.Start(); err != nil {
			logger.Warn("offline package watcher unavailable", "error", err)
		} else {
			defer src.Stop()
		}
		offline = src
	}

	res := resolver.New(cfg.CachePath(), offline, logger)

	engine := audio.NewBeepEngine(logger)
	engine.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	defer engine.Close()

	autoPlay := cfg.Guide.AutoPlay && !guideOpts.noAutoPlay
	controller := guide.NewController(t, engine, res, tracker, autoPlay, logger)
	controller.SetCountdownTicks(cfg.Guide.CountdownTicks)
	defer controller.Close()

	locationEnabled := cfg.Guide.LocationAutoPlay && !guideOpts.noLocation
	monitor := location.NewMonitor(t, controller, locationEnabled, logger)
	monitor.SetThreshold(cfg.Guide.ProximityThresholdM)
	monitor.SetHysteresisFactor(cfg.Guide.HysteresisFactor)
	monitor.SetMinAccuracy(cfg.Guide.MinAccuracyM)
	monitor.SetObserver(controller.Scheduler())

	if locationEnabled {
		// The countdown only starts once the user is within range of
		// the next stop; until then a move-closer advisory shows.
		controller.Scheduler().SetGate(func(next *model.Stop) bool {
			sample, ok := monitor.LastSample()
			if !ok {
				return true
			}
			return geo.Within(sample.Coords(), next.TriggerCoords(), monitor.Threshold())
		})
	}

	if guideOpts.replayFile != "" {
		replay := location.NewReplayTracker(guideOpts.replayFile, logger)
		replay.SetSpeed(guideOpts.replaySpeed)
		opts := location.Options{
			Interval:      time.Duration(cfg.Location.IntervalSeconds) * time.Second,
			DisplacementM: cfg.Location.DisplacementM,
		}
		if err := replay.Start(ctx, func(s model.LocationSample) {
			monitor.OnLocationUpdate(ctx, s)
		}, opts); err != nil {
			return fmt.Errorf("failed to start sample replay: %w", err)
		}
		defer replay.Stop()
	}

	if guideOpts.mpris {
		server := mpris.NewServer(controller, logger)
		if err := server.Start(); err != nil {
			logger.Debug("mpris unavailable", "error", err)
		} else {
			defer server.Stop()
		}
	}

	return tui.Run(controller)
}

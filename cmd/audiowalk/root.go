// Package main provides the CLI entrypoint for audiowalk.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvallinder/audiowalk/internal/config"
	"github.com/nvallinder/audiowalk/internal/progress"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose      bool
		configPath   string
		progressFile string
	}
	logger *slog.Logger

	// tracker is the global completion tracker instance
	tracker *progress.FileTracker
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "audiowalk",
	Short: "Location-aware audio guide for walking tours",
	Long: `audiowalk plays narrated walking tours.

As you move along a route it detects proximity to tour stops, starts
their narration automatically, advances to the next stop after a short
countdown, and records which stops you have completed. Audio is
resolved offline-first: bundled offline packages, then the local
download cache, then the network.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		progressPath := globalOpts.progressFile
		if progressPath == "" {
			progressPath = config.ProgressPath()
		}

		tracker, err = progress.NewFileTracker(progressPath)
		if err != nil {
			return fmt.Errorf("failed to open progress file: %w", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tracker != nil {
			return tracker.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/audiowalk/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.progressFile, "progress-file", "",
		"Path to progress file (default: ~/.local/share/audiowalk/progress.jsonl)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

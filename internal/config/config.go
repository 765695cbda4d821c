// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultProximityThresholdM = 100.0
	DefaultHysteresisFactor    = 2.0
	DefaultMinAccuracyM        = 50.0
	DefaultCountdownTicks      = 5
	DefaultVolume              = 100
	DefaultIntervalSeconds     = 2
	DefaultDisplacementM       = 5.0
)

// Config represents the audiowalk configuration.
type Config struct {
	Guide    GuideConfig    `toml:"guide"`
	Audio    AudioConfig    `toml:"audio"`
	Cache    CacheConfig    `toml:"cache"`
	Offline  OfflineConfig  `toml:"offline"`
	Location LocationConfig `toml:"location"`
}

// GuideConfig holds proximity and auto-advance behaviour.
type GuideConfig struct {
	ProximityThresholdM float64 `toml:"proximity_threshold_m"` // "entered" radius
	HysteresisFactor    float64 `toml:"hysteresis_factor"`     // suppression clears beyond threshold*factor
	MinAccuracyM        float64 `toml:"min_accuracy_m"`        // coarser samples are discarded
	CountdownTicks      int     `toml:"countdown_ticks"`       // seconds before auto-advance
	AutoPlay            bool    `toml:"auto_play"`             // advance to next stop after finish
	LocationAutoPlay    bool    `toml:"location_auto_play"`    // gate triggers and countdowns on proximity
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Volume int `toml:"volume"` // 0-100
}

// CacheConfig holds the downloaded-audio cache location.
type CacheConfig struct {
	Dir string `toml:"dir"` // empty = XDG cache dir
}

// OfflineConfig holds the offline package location.
type OfflineConfig struct {
	Dir string `toml:"dir"` // empty = offline packages disabled
}

// LocationConfig holds the tracking cadence requested from the
// location collaborator.
type LocationConfig struct {
	IntervalSeconds int     `toml:"interval_s"`
	DisplacementM   float64 `toml:"displacement_m"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Guide: GuideConfig{
			ProximityThresholdM: DefaultProximityThresholdM,
			HysteresisFactor:    DefaultHysteresisFactor,
			MinAccuracyM:        DefaultMinAccuracyM,
			CountdownTicks:      DefaultCountdownTicks,
			AutoPlay:            true,
			LocationAutoPlay:    true,
		},
		Audio: AudioConfig{
			Volume: DefaultVolume,
		},
		Cache: CacheConfig{
			Dir: "", // resolved via CachePath
		},
		Offline: OfflineConfig{
			Dir: "",
		},
		Location: LocationConfig{
			IntervalSeconds: DefaultIntervalSeconds,
			DisplacementM:   DefaultDisplacementM,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "audiowalk", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "audiowalk")
}

// CachePath returns the audio cache directory, honouring an explicit
// override from the config. Uses XDG_CACHE_HOME if set, otherwise
// ~/.cache.
func (c *Config) CachePath() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "audiowalk", "audio")
}

// ProgressPath returns the path to the completion-record JSONL file.
func ProgressPath() string {
	return filepath.Join(DataPath(), "progress.jsonl")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

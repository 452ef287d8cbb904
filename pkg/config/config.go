// Package config provides configuration loading and management for volslicer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"volslicer/internal/models"
	"volslicer/pkg/logging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Timing parameters of the rate limiter
	Timing struct {
		// Drag is the quiet period after a slider move before committing
		Drag time.Duration `yaml:"drag"`

		// View is the quiet period after a pan or zoom; scroll-zoom is bursty
		View time.Duration `yaml:"view"`

		// Init is the delay before the first state is published
		Init time.Duration `yaml:"init"`

		// Poll is the tick interval of the rate-limiting timer
		Poll time.Duration `yaml:"poll"`

		// WarmupTicks is the number of ticks to ignore after mounting, so the
		// plot can settle its initial axis ranges
		WarmupTicks int `yaml:"warmupTicks"`
	} `yaml:"timing"`

	// Viewer defaults
	Viewer struct {
		// Thumbnail is the longer-edge size of the low-res tier
		Thumbnail Thumbnail `yaml:"thumbnail"`

		// ReverseY puts the slice origin in the top-left corner
		ReverseY bool `yaml:"reverseY"`

		// Palette holds the per-axis default colors; entries from index 3
		// onward are the default overlay colormap
		Palette []string `yaml:"palette"`
	} `yaml:"viewer"`

	// Server parameters
	Server struct {
		// Address is the HTTP listen address
		Address string `yaml:"address"`

		// AllowedOrigins lists the CORS origins allowed to call the API
		AllowedOrigins []string `yaml:"allowedOrigins"`

		// TileCacheMB bounds the full-resolution tile cache; 0 disables it
		TileCacheMB int `yaml:"tileCacheMB"`

		// Gzip compresses JSON responses
		Gzip bool `yaml:"gzip"`
	} `yaml:"server"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for thumbnail encoding
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Logging parameters
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Timing.Drag = 200 * time.Millisecond
	cfg.Timing.View = 400 * time.Millisecond
	cfg.Timing.Init = 100 * time.Millisecond
	cfg.Timing.Poll = 100 * time.Millisecond
	cfg.Timing.WarmupTicks = 5

	cfg.Viewer.Thumbnail = Thumbnail(DefaultThumbnailSize)
	cfg.Viewer.ReverseY = true
	cfg.Viewer.Palette = append([]string(nil), models.D3...)

	cfg.Server.Address = "localhost:8050"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.TileCacheMB = 64
	cfg.Server.Gzip = true

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 7

	return cfg
}

// Validate checks values that would otherwise surface as odd runtime behavior.
// It does not modify c.
func (c *Config) Validate() error {
	if c.Timing.Poll <= 0 {
		return fmt.Errorf("timing.poll must be positive, got %s", c.Timing.Poll)
	}
	if c.Timing.Drag < 0 || c.Timing.View < 0 || c.Timing.Init < 0 {
		return fmt.Errorf("timing durations must not be negative")
	}
	if c.Timing.WarmupTicks < 0 {
		return fmt.Errorf("timing.warmupTicks must not be negative, got %d", c.Timing.WarmupTicks)
	}
	if len(c.Viewer.Palette) < 3 {
		return fmt.Errorf("viewer.palette needs at least 3 colors, got %d", len(c.Viewer.Palette))
	}
	if c.Server.TileCacheMB < 0 {
		return fmt.Errorf("server.tileCacheMB must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	// zero or less means all cores
	if cfg.Processing.NumCores <= 0 {
		cfg.Processing.NumCores = runtime.NumCPU()
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

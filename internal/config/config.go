package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Windows installs ship no zoneinfo

	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/correlate"
	"gopkg.in/yaml.v3"
)

// Config mirrors the command line flags so a game folder can keep its own
// settings in a YAML file.
type Config struct {
	GameDir     string        `yaml:"game_dir"`
	ReplayDir   string        `yaml:"replay_dir"`
	OutputDir   string        `yaml:"output_dir"`
	ResultsFile string        `yaml:"results_file"`
	MarkerFiles []string      `yaml:"marker_files"`
	Tolerance   time.Duration `yaml:"tolerance"`
	Timezone    string        `yaml:"timezone"`
	History     HistoryConfig `yaml:"history"`
	Logging     LoggingConfig `yaml:"logging"`
}

// HistoryConfig holds move history configuration
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not specified
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.GameDir == "" {
		cfg.GameDir = "."
	}
	if cfg.ReplayDir == "" {
		cfg.ReplayDir = reporganizer.DefaultReplayDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = reporganizer.DefaultOutputDir
	}
	if cfg.ResultsFile == "" {
		cfg.ResultsFile = reporganizer.DefaultResultsFile
	}
	if cfg.MarkerFiles == nil {
		cfg.MarkerFiles = append([]string(nil), reporganizer.DefaultMarkerFiles...)
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = correlate.DefaultSkewTolerance
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.History.Enabled == nil {
		enabled := true
		cfg.History.Enabled = &enabled
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = reporganizer.DefaultDBFile
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Tolerance < time.Second {
		errs = append(errs, fmt.Errorf("tolerance must be at least 1s, got %s", c.Tolerance))
	}
	if c.Tolerance%time.Second != 0 {
		errs = append(errs, fmt.Errorf("tolerance must be a whole number of seconds, got %s", c.Tolerance))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; "Local" is the machine's zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HistoryEnabled reports whether the move history should be kept.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

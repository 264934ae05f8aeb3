package reporganizer

import (
	"path/filepath"
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/correlate"
)

const (
	DefaultReplayDir   = "ReplayVS"
	DefaultOutputDir   = "!organized"
	DefaultResultsFile = "results.csv"
	DefaultDBFile      = "rep-organizer.sqlite3"
)

// DefaultMarkerFiles must exist in the game directory before anything is
// touched: the game itself and the netplay launcher that writes results.csv.
var DefaultMarkerFiles = []string{"MBAA.exe", "cccaster.v3.1.exe"}

type Config struct {
	GameDir        string
	ReplayDir      string // Relative to GameDir unless absolute
	OutputDir      string // Relative to the replay directory unless absolute
	ResultsFile    string // Relative to GameDir unless absolute
	MarkerFiles    []string
	Tolerance      time.Duration
	Location       *time.Location
	DBPath         string // Relative to GameDir unless absolute
	DisableHistory bool
	DryRun         bool
	Logger         Logger
	Storage        Storage
}

type Option func(*Config)

func WithGameDir(dir string) Option {
	return func(c *Config) {
		c.GameDir = dir
	}
}

func WithReplayDir(dir string) Option {
	return func(c *Config) {
		c.ReplayDir = dir
	}
}

func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

func WithResultsFile(path string) Option {
	return func(c *Config) {
		c.ResultsFile = path
	}
}

func WithMarkerFiles(names ...string) Option {
	return func(c *Config) {
		c.MarkerFiles = names
	}
}

func WithTolerance(d time.Duration) Option {
	return func(c *Config) {
		c.Tolerance = d
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Config) {
		c.Location = loc
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithoutHistory() Option {
	return func(c *Config) {
		c.DisableHistory = true
	}
}

func WithDryRun(dryRun bool) Option {
	return func(c *Config) {
		c.DryRun = dryRun
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		GameDir:     ".",
		ReplayDir:   DefaultReplayDir,
		OutputDir:   DefaultOutputDir,
		ResultsFile: DefaultResultsFile,
		MarkerFiles: DefaultMarkerFiles,
		Tolerance:   correlate.DefaultSkewTolerance,
		Location:    time.Local,
		DBPath:      DefaultDBFile,
		Logger:      nil,
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) replayPath() string {
	return resolve(c.GameDir, c.ReplayDir)
}

func (c *Config) outputPath() string {
	return resolve(c.replayPath(), c.OutputDir)
}

func (c *Config) resultsPath() string {
	return resolve(c.GameDir, c.ResultsFile)
}

func (c *Config) dbPath() string {
	return resolve(c.GameDir, c.DBPath)
}

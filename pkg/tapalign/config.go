package tapalign

import (
	"runtime"

	"github.com/himanishpuri/TapAlign/internal/metadata"
	"github.com/himanishpuri/TapAlign/internal/onset"
	"github.com/himanishpuri/TapAlign/internal/processor"
	"github.com/himanishpuri/TapAlign/internal/storage"
)

type (
	// Schema maps subject groups and condition labels to export codes.
	Schema = metadata.Schema
	// FileInfo is the subject, group and condition of one recording.
	FileInfo = metadata.FileInfo
	// Thresholds configures onset detection on one channel.
	Thresholds = onset.Params
	// Detector holds the thresholds of the beat and tap channels.
	Detector = processor.ChannelParams
)

type Config struct {
	DBPath      string
	TempDir     string
	Schema      Schema
	Detector    Detector
	Workers     int
	WriteOnsets bool
	Logger      Logger
	Storage     Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSchema(schema Schema) Option {
	return func(c *Config) {
		c.Schema = schema
	}
}

// WithDetector sets the onset thresholds. They have no default and must be
// given before any file is processed.
func WithDetector(d Detector) Option {
	return func(c *Config) {
		c.Detector = d
	}
}

// WithWorkers sets the number of files analyzed concurrently by ProcessBatch.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithOnsetDump writes the detected onsets of every file next to it.
func WithOnsetDump(enabled bool) Option {
	return func(c *Config) {
		c.WriteOnsets = enabled
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
		DBPath:  storage.DefaultDBFile,
		TempDir: "/tmp",
		Schema:  metadata.DefaultSchema(),
		Workers: runtime.NumCPU(),
	}
}

// Package config loads the settings shared by the command line tool and the
// HTTP server from a .env file, the environment and flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/TapAlign/internal/metadata"
	"github.com/himanishpuri/TapAlign/internal/storage"
	"github.com/himanishpuri/TapAlign/pkg/logger"
	"github.com/himanishpuri/TapAlign/pkg/tapalign"
)

// Config holds the service settings
type Config struct {
	DBPath     string
	TempDir    string
	Workers    int
	LogLevel   string
	Groups     string // LABEL=CODE,...
	Conditions string // LABEL=CODE:POLICY,...
	Onsets     bool

	Beat tapalign.Thresholds
	Tap  tapalign.Thresholds
}

// LoadEnv reads a .env file from the working directory if there is one.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

// Register defines the shared flags on fs with defaults taken from the
// environment. The returned Config is filled in when fs is parsed.
func Register(fs *flag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.DBPath, "db", getEnv("TAPALIGN_DB_PATH", storage.DefaultDBFile), "Path to the SQLite database file")
	fs.StringVar(&cfg.TempDir, "temp", getEnv("TAPALIGN_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	fs.IntVar(&cfg.Workers, "workers", getEnvInt("TAPALIGN_WORKERS", runtime.NumCPU()), "Number of files processed concurrently")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv(logger.EnvLevel, "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Groups, "groups", getEnv("TAPALIGN_GROUPS", ""), "Subject groups as LABEL=CODE,... (default PWS=1,PNS=2)")
	fs.StringVar(&cfg.Conditions, "conditions", getEnv("TAPALIGN_CONDITIONS", ""),
		"Conditions as LABEL=CODE:POLICY,... (default Aperiodic=1:free,PeriodicAlong=2:synchronous)")
	fs.BoolVar(&cfg.Onsets, "onsets", false, "Write detected onsets next to each recording")

	fs.Float64Var(&cfg.Beat.MinHeight, "beat-height", getEnvFloat("TAPALIGN_BEAT_HEIGHT", 0), "Minimum normalized beat peak height (required)")
	fs.Float64Var(&cfg.Beat.MinDistanceSeconds, "beat-distance", getEnvFloat("TAPALIGN_BEAT_DISTANCE", 0), "Minimum seconds between beats (required)")
	fs.Float64Var(&cfg.Beat.MinProminence, "beat-prominence", getEnvFloat("TAPALIGN_BEAT_PROMINENCE", 0), "Minimum beat peak prominence, 0 disables")
	fs.Float64Var(&cfg.Tap.MinHeight, "tap-height", getEnvFloat("TAPALIGN_TAP_HEIGHT", 0), "Minimum normalized tap peak height (required)")
	fs.Float64Var(&cfg.Tap.MinDistanceSeconds, "tap-distance", getEnvFloat("TAPALIGN_TAP_DISTANCE", 0), "Minimum seconds between taps (required)")
	fs.Float64Var(&cfg.Tap.MinProminence, "tap-prominence", getEnvFloat("TAPALIGN_TAP_PROMINENCE", 0), "Minimum tap peak prominence, 0 disables")

	return cfg
}

// Schema builds the metadata schema from the group and condition tables.
func (c *Config) Schema() (metadata.Schema, error) {
	return metadata.ParseSchema(c.Groups, c.Conditions)
}

// Options converts the settings into service options.
func (c *Config) Options() ([]tapalign.Option, error) {
	schema, err := c.Schema()
	if err != nil {
		return nil, err
	}
	return []tapalign.Option{
		tapalign.WithDBPath(c.DBPath),
		tapalign.WithTempDir(c.TempDir),
		tapalign.WithWorkers(c.Workers),
		tapalign.WithSchema(schema),
		tapalign.WithDetector(tapalign.Detector{Beat: c.Beat, Tap: c.Tap}),
		tapalign.WithOnsetDump(c.Onsets),
	}, nil
}

// ApplyLogLevel sets the level of the default logger.
func (c *Config) ApplyLogLevel() error {
	level, ok := logger.ParseLevel(c.LogLevel)
	if !ok {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	logger.SetLevel(level)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

// Package config holds the runtime configuration and a few global knobs
// that other packages rely on.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Debug is set by the CLI before anything else runs.
var Debug = false

type contextKey string

// LoggerCtxKey is the context key under which a scoped *slog.Logger is stored.
const LoggerCtxKey contextKey = "logger"

func GetLogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Config defines all tunables of a receipt download run. Values are taken
// from a yaml config file, environment variables or both; CLI flags may
// override individual fields afterwards.
type Config struct {
	CDPURL    string `yaml:"cdp_url" env:"TRIPFETCH_CDP_URL" env-default:"http://localhost:9222"`
	TripsURL  string `yaml:"trips_url" env:"TRIPFETCH_TRIPS_URL" env-default:"https://riders.uber.com/trips"`
	OutputDir string `yaml:"output_dir" env:"TRIPFETCH_OUTPUT_DIR" env-default:"receipts"`

	NavTimeoutMS      int `yaml:"nav_timeout_ms" env:"TRIPFETCH_NAV_TIMEOUT_MS" env-default:"30000"`
	PageLoadWaitMS    int `yaml:"page_load_wait_ms" env:"TRIPFETCH_PAGE_LOAD_WAIT_MS" env-default:"2000"`
	VisibilityWaitMS  int `yaml:"visibility_wait_ms" env:"TRIPFETCH_VISIBILITY_WAIT_MS" env-default:"2000"`
	DialogSettleMS    int `yaml:"dialog_settle_ms" env:"TRIPFETCH_DIALOG_SETTLE_MS" env-default:"1000"`
	DownloadTimeoutMS int `yaml:"download_timeout_ms" env:"TRIPFETCH_DOWNLOAD_TIMEOUT_MS" env-default:"10000"`
	TripPauseMS       int `yaml:"trip_pause_ms" env:"TRIPFETCH_TRIP_PAUSE_MS" env-default:"2000"`
}

// New reads the configuration from the given yaml file, falling back to
// environment variables and defaults when the file does not exist.
func New(configPath string) (*Config, error) {
	var c Config
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMS) * time.Millisecond
}

func (c *Config) PageLoadWait() time.Duration {
	return time.Duration(c.PageLoadWaitMS) * time.Millisecond
}

func (c *Config) VisibilityWait() time.Duration {
	return time.Duration(c.VisibilityWaitMS) * time.Millisecond
}

func (c *Config) DialogSettle() time.Duration {
	return time.Duration(c.DialogSettleMS) * time.Millisecond
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutMS) * time.Millisecond
}

func (c *Config) TripPause() time.Duration {
	return time.Duration(c.TripPauseMS) * time.Millisecond
}

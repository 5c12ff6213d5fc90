package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// Config is the full run configuration. Values come from Default, then the
// YAML file, then the environment.
type Config struct {
	AppEnv     string     `yaml:"app_env" env:"CONFSTAT_APP_ENV"`
	OpenReview OpenReview `yaml:"openreview"`
	Dashboard  Dashboard  `yaml:"dashboard"`
	Keywords   Keywords   `yaml:"keywords"`
	Export     Export     `yaml:"export"`
	Store      Store      `yaml:"store"`
}

// OpenReview configures the API client.
type OpenReview struct {
	BaseURL           string        `yaml:"base_url" env:"CONFSTAT_OPENREVIEW_URL"`
	Username          string        `yaml:"username" env:"OPENREVIEW_USERNAME"`
	Password          string        `yaml:"password" env:"OPENREVIEW_PASSWORD"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"CONFSTAT_OPENREVIEW_RPM"`
	PageSize          int           `yaml:"page_size" env:"CONFSTAT_OPENREVIEW_PAGE_SIZE"`
	Timeout           time.Duration `yaml:"timeout" env:"CONFSTAT_OPENREVIEW_TIMEOUT"`
}

// Dashboard configures the interactive document.
type Dashboard struct {
	Bins           int    `yaml:"bins" env:"CONFSTAT_DASHBOARD_BINS"`
	DefaultVisible int    `yaml:"default_visible" env:"CONFSTAT_DASHBOARD_VISIBLE"`
	Timezone       string `yaml:"timezone" env:"CONFSTAT_TIMEZONE"`
}

// Keywords configures normalization and aggregation.
type Keywords struct {
	LexiconPath string `yaml:"lexicon" env:"CONFSTAT_LEXICON"`
	// Workers is the aggregation parallelism; 0 means one per CPU.
	Workers int `yaml:"workers" env:"CONFSTAT_WORKERS"`
}

// Export configures static artifacts.
type Export struct {
	OutputDir   string `yaml:"output_dir" env:"CONFSTAT_OUTPUT_DIR"`
	TopK        int    `yaml:"top_k" env:"CONFSTAT_TOPK"`
	CloudWidth  int    `yaml:"cloud_width" env:"CONFSTAT_CLOUD_WIDTH"`
	CloudHeight int    `yaml:"cloud_height" env:"CONFSTAT_CLOUD_HEIGHT"`
	CloudWords  int    `yaml:"cloud_words" env:"CONFSTAT_CLOUD_WORDS"`
	Metrics     bool   `yaml:"metrics" env:"CONFSTAT_METRICS"`
}

// Store configures run history persistence.
type Store struct {
	// Driver is "sqlite", "memory" or "none".
	Driver string `yaml:"driver" env:"CONFSTAT_STORE"`
	Path   string `yaml:"path" env:"CONFSTAT_DB"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppEnv: "local",
		OpenReview: OpenReview{
			BaseURL:           "https://api2.openreview.net",
			RequestsPerMinute: 60,
			PageSize:          1000,
			Timeout:           60 * time.Second,
		},
		Dashboard: Dashboard{
			Bins:           30,
			DefaultVisible: 9,
			Timezone:       "UTC",
		},
		Export: Export{
			OutputDir:   ".",
			TopK:        50,
			CloudWidth:  1280,
			CloudHeight: 640,
			CloudWords:  300,
			Metrics:     true,
		},
		Store: Store{
			Driver: "sqlite",
			Path:   "confstat.db",
		},
	}
}

// Load reads an optional .env file, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing environment config: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{internalerr.ErrInvalidConfig}, args...)...)
	}
	switch {
	case c.OpenReview.BaseURL == "":
		return bad("openreview.base_url is empty")
	case c.OpenReview.RequestsPerMinute < 1:
		return bad("openreview.requests_per_minute must be positive, got %d", c.OpenReview.RequestsPerMinute)
	case c.OpenReview.PageSize < 1 || c.OpenReview.PageSize > 1000:
		return bad("openreview.page_size must be in [1, 1000], got %d", c.OpenReview.PageSize)
	case c.OpenReview.Timeout <= 0:
		return bad("openreview.timeout must be positive, got %s", c.OpenReview.Timeout)
	case (c.OpenReview.Username == "") != (c.OpenReview.Password == ""):
		return bad("openreview username and password must be set together")
	case c.Dashboard.Bins < 1:
		return bad("dashboard.bins must be at least 1, got %d", c.Dashboard.Bins)
	case c.Dashboard.DefaultVisible < 0:
		return bad("dashboard.default_visible must not be negative, got %d", c.Dashboard.DefaultVisible)
	case c.Keywords.Workers < 0:
		return bad("keywords.workers must not be negative, got %d", c.Keywords.Workers)
	case c.Export.TopK < 1:
		return bad("export.top_k must be at least 1, got %d", c.Export.TopK)
	case c.Export.CloudWidth < 1 || c.Export.CloudHeight < 1:
		return bad("export cloud size %dx%d", c.Export.CloudWidth, c.Export.CloudHeight)
	case c.Export.CloudWords < 1:
		return bad("export.cloud_words must be at least 1, got %d", c.Export.CloudWords)
	}
	if _, err := time.LoadLocation(c.Dashboard.Timezone); err != nil {
		return bad("dashboard.timezone %q: %v", c.Dashboard.Timezone, err)
	}
	switch c.Store.Driver {
	case "memory", "none":
	case "sqlite":
		if c.Store.Path == "" {
			return bad("store.path is required for the sqlite driver")
		}
	default:
		return bad("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// Location returns the dashboard timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Package config loads the polystore YAML configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/polystore/internal/planner"
)

// Config is the root configuration.
type Config struct {
	Planner PlannerConfig `yaml:"planner"`
	Catalog CatalogConfig `yaml:"catalog"`
	Harness HarnessConfig `yaml:"harness"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PlannerConfig configures planning calls.
type PlannerConfig struct {
	DefaultTarget   string        `yaml:"default_target"`
	MaxApplications int           `yaml:"max_applications"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CatalogConfig locates the catalog store and its declarations.
type CatalogConfig struct {
	StorePath string `yaml:"store_path"`
	SpecsDir  string `yaml:"specs_dir"`
}

// HarnessConfig configures scenario runs.
type HarnessConfig struct {
	ScenariosDir string `yaml:"scenarios_dir"`
	Parallelism  int    `yaml:"parallelism"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles planner metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

func setDefaults(cfg *Config) {
	if cfg.Planner.DefaultTarget == "" {
		cfg.Planner.DefaultTarget = "ENUMERABLE"
	}
	if cfg.Planner.MaxApplications == 0 {
		cfg.Planner.MaxApplications = planner.DefaultMaxApplications
	}
	if cfg.Planner.Timeout == 0 {
		cfg.Planner.Timeout = 30 * time.Second
	}

	if cfg.Catalog.StorePath == "" {
		cfg.Catalog.StorePath = ".polystore/catalog.db"
	}
	if cfg.Catalog.SpecsDir == "" {
		cfg.Catalog.SpecsDir = "specs"
	}

	if cfg.Harness.ScenariosDir == "" {
		cfg.Harness.ScenariosDir = "testdata/scenarios"
	}
	if cfg.Harness.Parallelism == 0 {
		cfg.Harness.Parallelism = 4
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if strings.EqualFold(c.Planner.DefaultTarget, "NONE") {
		return fmt.Errorf("planner.default_target must not be NONE")
	}
	if c.Planner.MaxApplications < 0 {
		return fmt.Errorf("planner.max_applications must be positive")
	}
	if c.Planner.Timeout < 0 {
		return fmt.Errorf("planner.timeout must not be negative")
	}
	if c.Harness.Parallelism < 0 {
		return fmt.Errorf("harness.parallelism must be positive")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of: text, json")
	}
	return nil
}

// Logger returns a logger writing to w as configured.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	return level, nil
}

// Package config loads fasten settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/fasten/pkg/catalog"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds all fasten settings.
type Config struct {
	// CatalogPath replaces the embedded catalog tables when set.
	CatalogPath string `yaml:"catalog_path"`

	// MatchOuter is the match-outer value for new fasteners and for saved
	// fasteners that predate the property.
	MatchOuter bool `yaml:"match_outer"`

	BuildTimeout string `yaml:"build_timeout"` // per shape build, "0" disables
	EvalTimeout  string `yaml:"eval_timeout"`  // per script evaluation

	MeshCells int `yaml:"mesh_cells"` // marching cubes cells along the longest axis
	Workers   int `yaml:"workers"`    // parallel recompute/tessellation

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BuildTimeout: "30s",
		EvalTimeout:  "5s",
		MeshCells:    200,
		Workers:      4,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("FASTEN_CATALOG"); path != "" {
		c.CatalogPath = path
	}
	if d := os.Getenv("FASTEN_BUILD_TIMEOUT"); d != "" {
		c.BuildTimeout = d
	}
}

// Validate checks durations and counts.
func (c *Config) Validate() error {
	if _, err := c.GetBuildTimeout(); err != nil {
		return err
	}
	if _, err := c.GetEvalTimeout(); err != nil {
		return err
	}
	if c.MeshCells < 0 {
		return fmt.Errorf("mesh_cells must not be negative, got %d", c.MeshCells)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// GetBuildTimeout parses build_timeout. Empty means no bound.
func (c *Config) GetBuildTimeout() (time.Duration, error) {
	return parseDuration("build_timeout", c.BuildTimeout)
}

// GetEvalTimeout parses eval_timeout. Empty means the engine default.
func (c *Config) GetEvalTimeout() (time.Duration, error) {
	return parseDuration("eval_timeout", c.EvalTimeout)
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, s)
	}
	return d, nil
}

// Registry returns the catalog named by CatalogPath, or the embedded one.
func (c *Config) Registry() (*catalog.Registry, error) {
	if c.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(c.CatalogPath)
}

// Logger builds a zap logger from the logging section. verbose forces
// debug level.
func (c *LoggingConfig) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		zc.Level = lvl
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// Package config loads eegreport settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all eegreport settings. Command-line flags override it.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Parse   ParseConfig   `yaml:"parse"`
	Augment AugmentConfig `yaml:"augment"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig selects log files.
type InputConfig struct {
	Paths    []string `yaml:"paths"`
	Pattern  string   `yaml:"pattern"`  // glob applied inside directories
	Encoding string   `yaml:"encoding"` // auto, utf-8, euc-kr
}

// OutputConfig controls where artifacts go.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Format    string `yaml:"format"` // parquet, csv
	Overwrite bool   `yaml:"overwrite"`
	Labels    string `yaml:"labels"` // optional participant_id,assistant CSV
}

// ParseConfig controls log parsing.
type ParseConfig struct {
	Strict  bool `yaml:"strict"`
	Workers int  `yaml:"workers"`
}

// AugmentConfig controls synthetic variants.
type AugmentConfig struct {
	Count  int     `yaml:"count"`
	Spread float64 `yaml:"spread"`
	Seed   uint64  `yaml:"seed"`
}

// StoreConfig points at the optional SQLite archive.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Pattern:  "RECORD*.txt",
			Encoding: "auto",
		},
		Output: OutputConfig{
			Dir:    "out",
			Format: "parquet",
		},
		Parse: ParseConfig{
			Workers: 4,
		},
		Augment: AugmentConfig{
			Spread: 0.15,
			Seed:   1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EEGREPORT_OUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("EEGREPORT_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("EEGREPORT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "parquet", "csv":
	default:
		return fmt.Errorf("invalid output format: %s (valid: parquet, csv)", c.Output.Format)
	}
	switch strings.ToLower(c.Input.Encoding) {
	case "", "auto", "utf-8", "utf8", "euc-kr", "cp949":
	default:
		return fmt.Errorf("invalid input encoding: %s (valid: auto, utf-8, euc-kr)", c.Input.Encoding)
	}
	if c.Parse.Workers < 0 {
		return fmt.Errorf("parse.workers must be >= 0, got %d", c.Parse.Workers)
	}
	if c.Augment.Count < 0 {
		return fmt.Errorf("augment.count must be >= 0, got %d", c.Augment.Count)
	}
	if c.Augment.Spread <= 0 || c.Augment.Spread > 1 {
		return fmt.Errorf("augment.spread must be in (0,1], got %g", c.Augment.Spread)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "RECORD*.txt", cfg.Input.Pattern)
	assert.Equal(t, "parquet", cfg.Output.Format)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("EEGREPORT_OUT_DIR", "")
	t.Setenv("EEGREPORT_STORE", "")
	t.Setenv("EEGREPORT_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesYAML(t *testing.T) {
	t.Setenv("EEGREPORT_OUT_DIR", "")
	t.Setenv("EEGREPORT_STORE", "")
	t.Setenv("EEGREPORT_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "eegreport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  paths: [logs]
  encoding: euc-kr
output:
  format: csv
parse:
  strict: true
augment:
  count: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"logs"}, cfg.Input.Paths)
	assert.Equal(t, "RECORD*.txt", cfg.Input.Pattern)
	assert.Equal(t, "euc-kr", cfg.Input.Encoding)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.True(t, cfg.Parse.Strict)
	assert.Equal(t, 5, cfg.Augment.Count)
	assert.Equal(t, 0.15, cfg.Augment.Spread)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EEGREPORT_OUT_DIR", "/tmp/reports")
	t.Setenv("EEGREPORT_STORE", "/tmp/archive.db")
	t.Setenv("EEGREPORT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reports", cfg.Output.Dir)
	assert.Equal(t, "/tmp/archive.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("EEGREPORT_OUT_DIR", "")
	t.Setenv("EEGREPORT_STORE", "")
	t.Setenv("EEGREPORT_LOG_LEVEL", "")

	cfg := Default()
	cfg.Augment.Count = 3
	cfg.Input.Paths = []string{"logs", "more/RECORD_1.txt"}
	cfg.Store.Path = "archive.db"
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Output.Format = "xlsx" }},
		{"encoding", func(c *Config) { c.Input.Encoding = "latin1" }},
		{"workers", func(c *Config) { c.Parse.Workers = -1 }},
		{"augment count", func(c *Config) { c.Augment.Count = -2 }},
		{"augment spread", func(c *Config) { c.Augment.Spread = 1.5 }},
		{"zero augment spread", func(c *Config) { c.Augment.Spread = 0 }},
		{"negative augment spread", func(c *Config) { c.Augment.Spread = -0.1 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(LoggingConfig{Level: "error", Format: "console"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(LoggingConfig{Level: "chatty"}, false)
	assert.Error(t, err)
}

// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BlueSkyXN/XTF/control"
	"github.com/BlueSkyXN/XTF/tabsync"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.AppID = "cli_app"
	cfg.AppSecret = "secret"
	cfg.AppToken = "appTok"
	cfg.TableID = "tblX"
	cfg.IndexColumn = "id"
	cfg.Source.Path = "data.csv"
	return cfg
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "bitable", cfg.Target)
	require.Equal(t, 500, cfg.BatchSize)
	require.Equal(t, "exponential_backoff", cfg.Retry.Strategy)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target: sheet
spreadsheet_token: shtTok
sheet_id: sheet1
sync_mode: clone
batch_size: 100
retry:
  strategy: fixed_wait
  initial_delay: 1.5
rate_limit:
  strategy: sliding_window
  window_size: 2
  max_requests: 10
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "sheet", cfg.Target)
	require.Equal(t, "clone", cfg.SyncMode)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, "fixed_wait", cfg.Retry.Strategy)
	require.Equal(t, 1.5, cfg.Retry.InitialDelay)
	require.Equal(t, "sliding_window", cfg.RateLimit.Strategy)

	// Untouched keys keep their defaults.
	require.Equal(t, 500, cfg.RowBatchSize)
	require.Equal(t, "csv", cfg.Source.Type)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [broken"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad sync mode", func(c *Config) { c.SyncMode = "mirror" }},
		{"unknown target", func(c *Config) { c.Target = "jira" }},
		{"bitable without table", func(c *Config) { c.TableID = "" }},
		{"missing credentials", func(c *Config) { c.AppSecret = "" }},
		{"csv without path", func(c *Config) { c.Source.Path = "" }},
		{"unknown source", func(c *Config) { c.Source.Type = "excel" }},
		{"sqlite without table", func(c *Config) { c.Source = SourceConfig{Type: "sqlite", Path: "x.db"} }},
		{"postgres without query", func(c *Config) { c.Source = SourceConfig{Type: "postgres", Conn: "dsn"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, tabsync.IsConfig(err))
		})
	}
}

func TestValidateSheetTarget(t *testing.T) {
	cfg := validConfig()
	cfg.Target = "sheet"
	err := cfg.Validate()
	require.Error(t, err) // spreadsheet credentials missing

	cfg.SpreadsheetToken = "shtTok"
	cfg.SheetID = "sheet1"
	require.NoError(t, cfg.Validate())
}

func TestSeconds(t *testing.T) {
	require.Equal(t, 500*time.Millisecond, seconds(0.5))
	require.Equal(t, 2*time.Second, seconds(2))
	require.Equal(t, time.Duration(0), seconds(0))
}

func TestWriteSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteSampleConfig(path))

	// The sample must load cleanly.
	_, err := LoadConfig(path)
	require.NoError(t, err)

	// Refuses to clobber.
	require.Error(t, WriteSampleConfig(path))
}

func TestBuildStrategy(t *testing.T) {
	exp := buildStrategy(RetryConfig{Strategy: "exponential_backoff", InitialDelay: 0.5, Multiplier: 2.0})
	require.IsType(t, &control.ExponentialBackoff{}, exp)
	require.Equal(t, 2*time.Second, exp.NextDelay(3))

	lin := buildStrategy(RetryConfig{Strategy: "linear_growth", InitialDelay: 1, Increment: 1})
	require.Equal(t, 3*time.Second, lin.NextDelay(3))

	fixed := buildStrategy(RetryConfig{Strategy: "fixed_wait", InitialDelay: 2})
	require.Equal(t, 2*time.Second, fixed.NextDelay(9))
}

func TestBuildLimiter(t *testing.T) {
	require.IsType(t, &control.FixedDelayLimiter{}, buildLimiter(RateLimitConfig{Strategy: "fixed_wait", Delay: 1}, nil))
	require.IsType(t, &control.SlidingWindowLimiter{}, buildLimiter(RateLimitConfig{Strategy: "sliding_window", WindowSize: 1, MaxRequests: 5}, nil))
	require.IsType(t, &control.FixedWindowLimiter{}, buildLimiter(RateLimitConfig{Strategy: "fixed_window", WindowSize: 1, MaxRequests: 5}, nil))
}

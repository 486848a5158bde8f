// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

// Package cli wires configuration, logging and the remote clients into the
// tabsync engine behind a cobra command.
package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// SourceConfig selects where the local dataset comes from.
type SourceConfig struct {
	Type  string `yaml:"type"`  // csv (default), sqlite, postgres
	Path  string `yaml:"path"`  // csv file or sqlite database file
	Table string `yaml:"table"` // sqlite table name
	Conn  string `yaml:"conn"`  // postgres connection string
	Query string `yaml:"query"` // postgres source query
}

// RetryConfig selects and tunes the retry strategy. Delays are seconds.
type RetryConfig struct {
	Strategy     string  `yaml:"strategy"` // exponential_backoff (default), linear_growth, fixed_wait
	InitialDelay float64 `yaml:"initial_delay"`
	Multiplier   float64 `yaml:"multiplier"`
	Increment    float64 `yaml:"increment"`
	MaxWait      float64 `yaml:"max_wait"`
	MaxRetries   int     `yaml:"max_retries"`
}

// RateLimitConfig selects and tunes the rate limiter. Durations are seconds.
type RateLimitConfig struct {
	Strategy    string  `yaml:"strategy"` // fixed_wait (default), sliding_window, fixed_window
	Delay       float64 `yaml:"delay"`
	WindowSize  float64 `yaml:"window_size"`
	MaxRequests int     `yaml:"max_requests"`
}

// Config is the full YAML configuration. Flags override file values, file
// values override the defaults.
type Config struct {
	Target string       `yaml:"target"` // bitable (default) or sheet
	Source SourceConfig `yaml:"source"`

	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url"` // empty means the public endpoint

	// Bitable target.
	AppToken string `yaml:"app_token"`
	TableID  string `yaml:"table_id"`

	// Sheet target.
	SpreadsheetToken string `yaml:"spreadsheet_token"`
	SheetID          string `yaml:"sheet_id"`

	SyncMode         string   `yaml:"sync_mode"`
	IndexColumn      string   `yaml:"index_column"`
	SelectiveColumns []string `yaml:"selective_columns"`
	ProtectFormulas  bool     `yaml:"protect_formulas"`

	BatchSize    int `yaml:"batch_size"`
	RowBatchSize int `yaml:"row_batch_size"`
	ColBatchSize int `yaml:"col_batch_size"`

	CreateMissingFields bool `yaml:"create_missing_fields"`

	// Verify fetches the table back after the run and reports per-column
	// mismatches against the local data. Purely observational.
	Verify    bool    `yaml:"validate"`
	Tolerance float64 `yaml:"tolerance"` // numeric comparison tolerance

	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		Target:              "bitable",
		Source:              SourceConfig{Type: "csv"},
		SyncMode:            string(tabsync.PolicyFull),
		BatchSize:           500,
		RowBatchSize:        500,
		ColBatchSize:        80,
		CreateMissingFields: true,
		Tolerance:           1e-6,
		Retry: RetryConfig{
			Strategy:     "exponential_backoff",
			InitialDelay: 0.5,
			Multiplier:   2.0,
			Increment:    0.5,
			MaxRetries:   3,
		},
		RateLimit: RateLimitConfig{
			Strategy: "fixed_wait",
			Delay:    0.5,
		},
		LogLevel: "INFO",
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error; flags may still supply everything.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the parts every run needs before any I/O happens.
func (c *Config) Validate() error {
	if _, err := tabsync.ParsePolicy(c.SyncMode); err != nil {
		return err
	}
	switch c.Target {
	case "bitable":
		if c.AppToken == "" || c.TableID == "" {
			return &tabsync.ConfigError{Field: "app_token/table_id", Reason: "bitable target requires both"}
		}
	case "sheet":
		if c.SpreadsheetToken == "" || c.SheetID == "" {
			return &tabsync.ConfigError{Field: "spreadsheet_token/sheet_id", Reason: "sheet target requires both"}
		}
	default:
		return &tabsync.ConfigError{Field: "target", Reason: fmt.Sprintf("unknown target %q", c.Target)}
	}
	if c.AppID == "" || c.AppSecret == "" {
		return &tabsync.ConfigError{Field: "app_id/app_secret", Reason: "credentials are required"}
	}
	switch c.Source.Type {
	case "csv":
		if c.Source.Path == "" {
			return &tabsync.ConfigError{Field: "source.path", Reason: "csv source requires a file path"}
		}
	case "sqlite":
		if c.Source.Path == "" || c.Source.Table == "" {
			return &tabsync.ConfigError{Field: "source", Reason: "sqlite source requires path and table"}
		}
	case "postgres":
		if c.Source.Conn == "" || c.Source.Query == "" {
			return &tabsync.ConfigError{Field: "source", Reason: "postgres source requires conn and query"}
		}
	default:
		return &tabsync.ConfigError{Field: "source.type", Reason: fmt.Sprintf("unknown source type %q", c.Source.Type)}
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// WriteSampleConfig writes a commented starter config, refusing to clobber
// an existing file.
func WriteSampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	sample := `# XTF sync configuration
target: bitable            # bitable or sheet
source:
  type: csv                # csv, sqlite or postgres
  path: data.csv

app_id: cli_your_app_id
app_secret: your_app_secret
app_token: your_app_token
table_id: your_table_id

sync_mode: full            # full, incremental, overwrite, clone
index_column: ID
create_missing_fields: true

batch_size: 500
row_batch_size: 500
col_batch_size: 80

retry:
  strategy: exponential_backoff
  initial_delay: 0.5
  multiplier: 2.0
  max_retries: 3

rate_limit:
  strategy: fixed_wait
  delay: 0.5

log_level: INFO
`
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	return nil
}

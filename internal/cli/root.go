// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  flagOverrides
	)

	root := &cobra.Command{
		Use:           "xtf",
		Short:         "Sync a local tabular dataset into a Feishu Bitable or Sheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			overrides.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, cfg)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	overrides.register(flags)

	root.AddCommand(&cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a sample config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := WriteSampleConfig(path); err != nil {
				return err
			}
			fmt.Println("created sample config:", path)
			return nil
		},
	})

	return root
}

// flagOverrides carries the subset of config reachable from the command
// line. Only flags the user actually set override the file, so precedence is
// defaults < file < flags.
type flagOverrides struct {
	target           string
	sourcePath       string
	appID            string
	appSecret        string
	appToken         string
	tableID          string
	spreadsheetToken string
	sheetID          string
	syncMode         string
	indexColumn      string
	selectiveColumns []string
	protectFormulas  bool
	validate         bool
	batchSize        int
	maxRetries       int
	rateLimitDelay   float64
	noCreateFields   bool
	logLevel         string
	logFile          string
}

func (o *flagOverrides) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.target, "target", "", "sync target: bitable or sheet")
	flags.StringVar(&o.sourcePath, "file-path", "", "local CSV file path")
	flags.StringVar(&o.appID, "app-id", "", "Feishu app ID")
	flags.StringVar(&o.appSecret, "app-secret", "", "Feishu app secret")
	flags.StringVar(&o.appToken, "app-token", "", "Bitable app token")
	flags.StringVar(&o.tableID, "table-id", "", "Bitable table ID")
	flags.StringVar(&o.spreadsheetToken, "spreadsheet-token", "", "spreadsheet token")
	flags.StringVar(&o.sheetID, "sheet-id", "", "worksheet ID")
	flags.StringVar(&o.syncMode, "sync-mode", "", "full, incremental, overwrite or clone")
	flags.StringVar(&o.indexColumn, "index-column", "", "join-key column name")
	flags.StringSliceVar(&o.selectiveColumns, "selective-columns", nil, "restrict updates to these columns")
	flags.BoolVar(&o.protectFormulas, "protect-formulas", false, "exclude server-computed columns from updates")
	flags.BoolVar(&o.validate, "validate", false, "fetch the table back after the run and report mismatches")
	flags.IntVar(&o.batchSize, "batch-size", 0, "record batch size")
	flags.IntVar(&o.maxRetries, "max-retries", -1, "max retries per request")
	flags.Float64Var(&o.rateLimitDelay, "rate-limit-delay", -1, "seconds between requests")
	flags.BoolVar(&o.noCreateFields, "no-create-fields", false, "do not create missing fields")
	flags.StringVar(&o.logLevel, "log-level", "", "DEBUG, INFO, WARNING or ERROR")
	flags.StringVar(&o.logFile, "log-file", "", "log file path (rotated)")
}

func (o *flagOverrides) apply(cmd *cobra.Command, cfg *Config) {
	set := cmd.Flags().Changed
	if set("target") {
		cfg.Target = o.target
	}
	if set("file-path") {
		cfg.Source.Type = "csv"
		cfg.Source.Path = o.sourcePath
	}
	if set("app-id") {
		cfg.AppID = o.appID
	}
	if set("app-secret") {
		cfg.AppSecret = o.appSecret
	}
	if set("app-token") {
		cfg.AppToken = o.appToken
	}
	if set("table-id") {
		cfg.TableID = o.tableID
	}
	if set("spreadsheet-token") {
		cfg.SpreadsheetToken = o.spreadsheetToken
	}
	if set("sheet-id") {
		cfg.SheetID = o.sheetID
	}
	if set("sync-mode") {
		cfg.SyncMode = o.syncMode
	}
	if set("index-column") {
		cfg.IndexColumn = o.indexColumn
	}
	if set("selective-columns") {
		cfg.SelectiveColumns = o.selectiveColumns
	}
	if set("protect-formulas") {
		cfg.ProtectFormulas = o.protectFormulas
	}
	if set("validate") {
		cfg.Verify = o.validate
	}
	if set("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if set("max-retries") {
		cfg.Retry.MaxRetries = o.maxRetries
	}
	if set("rate-limit-delay") {
		cfg.RateLimit.Strategy = "fixed_wait"
		cfg.RateLimit.Delay = o.rateLimitDelay
	}
	if set("no-create-fields") {
		cfg.CreateMissingFields = false
	}
	if set("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if set("log-file") {
		cfg.LogFile = o.logFile
	}
}

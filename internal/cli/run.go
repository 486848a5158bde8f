// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/BlueSkyXN/XTF/control"
	"github.com/BlueSkyXN/XTF/feishu"
	"github.com/BlueSkyXN/XTF/source"
	"github.com/BlueSkyXN/XTF/tabsync"
)

// runSync wires the configured source, remote clients and engine together
// and executes one run.
func runSync(ctx context.Context, cfg Config) error {
	logger := newLogger(cfg.LogLevel, cfg.LogFile)
	clock := clockwork.NewRealClock()

	policy, err := tabsync.ParsePolicy(cfg.SyncMode)
	if err != nil {
		return err
	}

	ds, err := loadSource(ctx, cfg.Source)
	if err != nil {
		return err
	}
	logger.Info("loaded local dataset",
		"source", cfg.Source.Type, "rows", len(ds.Rows), "cols", len(ds.Columns))

	ctrl := control.NewController(
		buildStrategy(cfg.Retry),
		cfg.Retry.MaxRetries,
		buildLimiter(cfg.RateLimit, clock),
		tabsync.IsTransient,
		clock,
		logger,
	)
	tokens := feishu.NewTokenSource(cfg.AppID, cfg.AppSecret, cfg.BaseURL, nil, clock, logger)

	var result *tabsync.RunResult
	switch cfg.Target {
	case "sheet":
		result, err = runSheetSync(ctx, cfg, ds, policy, tokens, ctrl, logger)
	default:
		result, err = runBitableSync(ctx, cfg, ds, policy, tokens, ctrl, logger)
	}
	if err != nil {
		return err
	}

	if !result.OK() {
		return fmt.Errorf("sync finished with failures: %s", result.String())
	}
	logger.Info("sync completed", "result", result.String())
	return nil
}

func runBitableSync(ctx context.Context, cfg Config, ds *tabsync.Dataset, policy tabsync.Policy, tokens *feishu.TokenSource, ctrl *control.Controller, logger *slog.Logger) (*tabsync.RunResult, error) {
	client, err := feishu.NewBitableClient(feishu.BitableConfig{
		AppToken:   cfg.AppToken,
		TableID:    cfg.TableID,
		BaseURL:    cfg.BaseURL,
		Tokens:     tokens,
		Controller: ctrl,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	fieldTypes, err := feishu.EnsureFields(ctx, client, ds, cfg.CreateMissingFields, logger)
	if err != nil {
		return nil, err
	}

	// Coerce local values toward the table's field types before planning so
	// payloads are wire-ready.
	stats := &feishu.ConversionStats{}
	converted := &tabsync.Dataset{Columns: ds.Columns, Rows: make([]tabsync.Row, len(ds.Rows))}
	for i, row := range ds.Rows {
		converted.Rows[i] = feishu.ConvertRow(row, fieldTypes, stats)
	}
	stats.Report(logger)

	var protected map[string]struct{}
	if cfg.ProtectFormulas {
		fields, err := client.ListFields(ctx)
		if err != nil {
			return nil, err
		}
		protected = feishu.ProtectedColumns(fields)

		// Formula content can also surface as rendered "=" cells in a
		// fetched view, in columns the schema types as plain text.
		view, err := client.FetchView(ctx, ds.Columns)
		if err != nil {
			return nil, err
		}
		for col := range tabsync.DetectProtectedColumns(view) {
			protected[col] = struct{}{}
		}
		if len(protected) > 0 {
			logger.Info("protecting server-computed columns", "count", len(protected))
		}
	}

	engine, err := tabsync.NewEngine(tabsync.EngineConfig{
		Reader:        client,
		Writer:        client,
		Controller:    ctrl,
		CreateCeiling: min(cfg.BatchSize, feishu.MaxBatchCreateSize),
		UpdateCeiling: min(cfg.BatchSize, feishu.MaxBatchUpdateSize),
		DeleteCeiling: min(cfg.BatchSize, feishu.MaxBatchDeleteSize),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx, converted, tabsync.PlanOptions{
		IndexColumn:      cfg.IndexColumn,
		Policy:           policy,
		SelectiveColumns: cfg.SelectiveColumns,
		ProtectedColumns: protected,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Verify {
		report, verr := verifyAgainstRemote(ctx, client, converted, cfg.IndexColumn, cfg.Tolerance)
		if verr != nil {
			logger.Warn("post-sync verification fetch failed", "error", verr)
		} else {
			reportVerification(report, logger)
		}
	}
	return result, nil
}

// verifyAgainstRemote fetches the synced columns back and diffs them against
// the local data. The report is observational; it never alters the run
// outcome.
func verifyAgainstRemote(ctx context.Context, client *feishu.BitableClient, ds *tabsync.Dataset, indexColumn string, tolerance float64) (map[string]tabsync.ColumnDiff, error) {
	view, err := client.FetchView(ctx, ds.Columns)
	if err != nil {
		return nil, err
	}
	return tabsync.Diff(ds, view, indexColumn, tolerance), nil
}

func reportVerification(report map[string]tabsync.ColumnDiff, logger *slog.Logger) {
	mismatched := 0
	for col, d := range report {
		if d.Mismatched > 0 {
			mismatched += d.Mismatched
			logger.Warn("column differs from remote after sync",
				"column", col, "compared", d.Compared, "mismatched", d.Mismatched)
		}
	}
	if mismatched == 0 {
		logger.Info("post-sync verification passed", "columns", len(report))
	}
}

func runSheetSync(ctx context.Context, cfg Config, ds *tabsync.Dataset, policy tabsync.Policy, tokens *feishu.TokenSource, ctrl *control.Controller, logger *slog.Logger) (*tabsync.RunResult, error) {
	client, err := feishu.NewSheetClient(feishu.SheetConfig{
		SpreadsheetToken: cfg.SpreadsheetToken,
		SheetID:          cfg.SheetID,
		BaseURL:          cfg.BaseURL,
		Tokens:           tokens,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	engine, err := tabsync.NewGridEngine(tabsync.GridEngineConfig{
		Writer:     client,
		Controller: ctrl,
		RowCeiling: min(cfg.RowBatchSize, feishu.MaxSheetRowsPerCall),
		ColCeiling: min(cfg.ColBatchSize, feishu.MaxSheetColsPerCall),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return engine.Run(ctx, ds, policy)
}

func loadSource(ctx context.Context, src SourceConfig) (*tabsync.Dataset, error) {
	switch src.Type {
	case "csv":
		return source.ReadCSV(src.Path)
	case "sqlite":
		return source.ReadSQLite(ctx, src.Path, src.Table)
	case "postgres":
		return source.ReadPostgres(ctx, src.Conn, src.Query)
	default:
		return nil, &tabsync.ConfigError{Field: "source.type", Reason: fmt.Sprintf("unknown source type %q", src.Type)}
	}
}

func buildStrategy(cfg RetryConfig) control.RetryStrategy {
	switch cfg.Strategy {
	case "linear_growth":
		return &control.LinearGrowth{
			Initial:   seconds(cfg.InitialDelay),
			Increment: seconds(cfg.Increment),
			MaxWait:   seconds(cfg.MaxWait),
		}
	case "fixed_wait":
		return &control.FixedWait{Delay: seconds(cfg.InitialDelay)}
	default:
		return &control.ExponentialBackoff{
			Initial:    seconds(cfg.InitialDelay),
			Multiplier: cfg.Multiplier,
			MaxWait:    seconds(cfg.MaxWait),
		}
	}
}

func buildLimiter(cfg RateLimitConfig, clock clockwork.Clock) control.RateLimiter {
	switch cfg.Strategy {
	case "sliding_window":
		return control.NewSlidingWindowLimiter(clock, seconds(cfg.WindowSize), cfg.MaxRequests)
	case "fixed_window":
		return control.NewFixedWindowLimiter(clock, seconds(cfg.WindowSize), cfg.MaxRequests)
	default:
		return control.NewFixedDelayLimiter(clock, seconds(cfg.Delay))
	}
}

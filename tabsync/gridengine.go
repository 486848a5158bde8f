// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"context"
	"io"
	"log/slog"

	"github.com/BlueSkyXN/XTF/control"
)

// GridEngine runs one sync pass against a range-addressed target. Grid
// targets have no per-record identifiers, so the policies degrade to range
// semantics: full, overwrite and clone write the whole grid (header
// included) from the origin, while incremental appends the data rows and
// lets the remote locate the insertion position.
type GridEngine struct {
	writer     RangeWriter
	transport  *Transport
	rowCeiling int
	colCeiling int
	logger     *slog.Logger
}

// GridEngineConfig wires a GridEngine.
type GridEngineConfig struct {
	Writer     RangeWriter
	Controller *control.Controller
	RowCeiling int
	ColCeiling int
	Logger     *slog.Logger
}

// NewGridEngine validates cfg and returns a ready engine.
func NewGridEngine(cfg GridEngineConfig) (*GridEngine, error) {
	if cfg.Writer == nil {
		return nil, &ConfigError{Reason: "grid engine requires a range writer"}
	}
	if cfg.Controller == nil {
		return nil, &ConfigError{Reason: "grid engine requires a controller"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &GridEngine{
		writer:     cfg.Writer,
		transport:  NewTransport(cfg.Controller, logger),
		rowCeiling: cfg.RowCeiling,
		colCeiling: cfg.ColCeiling,
		logger:     logger,
	}, nil
}

// Run renders local as a grid and dispatches its blocks sequentially. The
// per-kind accounting lands under Creates since every grid write carries new
// cell content.
func (e *GridEngine) Run(ctx context.Context, local *Dataset, policy Policy) (*RunResult, error) {
	if len(local.Columns) == 0 {
		return nil, &ConfigError{Field: "dataset", Reason: "no columns to sync"}
	}

	var it *GridChunkIterator
	switch policy {
	case PolicyIncremental:
		grid := local.Grid()
		it = AppendChunks(grid[1:], e.rowCeiling) // append data rows, keep existing header
	case PolicyFull, PolicyOverwrite, PolicyClone:
		it = GridChunks(local.Grid(), e.rowCeiling, e.colCeiling)
	default:
		return nil, &ConfigError{Field: "sync_mode", Reason: "unknown policy for grid target"}
	}

	e.logger.Info("grid sync starting",
		"policy", string(policy), "rows", len(local.Rows), "cols", len(local.Columns))

	result := &RunResult{Creates: KindResult{Planned: len(local.Rows)}}
	if policy != PolicyIncremental {
		result.Creates.Planned++ // header row is written too
	}

	for {
		chunk, ok := it.Next()
		if !ok {
			break
		}
		if result.Cancelled || ctx.Err() != nil {
			result.Cancelled = true
			result.Creates.Unapplied += len(chunk.Values)
			continue
		}

		failures := e.transport.SendGrid(ctx, e.writer, chunk)
		failed := 0
		for _, f := range failures {
			failed += f.Rows
		}
		result.Creates.Failed += failed
		result.Creates.Succeeded += len(chunk.Values) - failed
		result.Failures = append(result.Failures, failures...)
	}

	e.logger.Info("grid sync finished", "result", result.String(), "failed_blocks", len(result.Failures))
	return result, nil
}

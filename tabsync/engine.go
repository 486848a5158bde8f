// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/BlueSkyXN/XTF/control"
)

// KindResult counts how one batch kind fared.
type KindResult struct {
	Planned   int
	Succeeded int
	Failed    int
	Unapplied int // skipped because the run was cancelled
}

// RunResult is the outcome of one sync run. A run is best-effort: failed
// chunks are recorded and the remaining chunks are still attempted, so
// partial failure here does not by itself mean the run was useless. Deciding
// whether it constitutes overall failure is the caller's business.
type RunResult struct {
	Creates   KindResult
	Updates   KindResult
	Deletes   KindResult
	Failures  []SendFailure
	Cancelled bool
}

// OK reports whether every planned operation was applied.
func (r *RunResult) OK() bool {
	return !r.Cancelled && len(r.Failures) == 0
}

func (r *RunResult) String() string {
	return fmt.Sprintf("deletes %d/%d, updates %d/%d, creates %d/%d, cancelled=%v",
		r.Deletes.Succeeded, r.Deletes.Planned,
		r.Updates.Succeeded, r.Updates.Planned,
		r.Creates.Succeeded, r.Creates.Planned,
		r.Cancelled)
}

// Engine runs one reconciliation-and-transport pass against a row-addressed
// target. Chunks are dispatched sequentially by a single logical worker: the
// rate limiter's admission state and the bisection recursion are simplest to
// reason about that way, and the remote ceilings are aggregate, so
// parallelism would not buy throughput anyway.
type Engine struct {
	reader     RecordReader
	writer     RecordWriter
	transport  *Transport
	rowCeiling map[OpKind]int
	logger     *slog.Logger
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Reader     RecordReader
	Writer     RecordWriter
	Controller *control.Controller

	// Per-kind row ceilings. Zero means a single chunk per batch.
	CreateCeiling int
	UpdateCeiling int
	DeleteCeiling int

	Logger *slog.Logger
}

// NewEngine validates cfg and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Reader == nil || cfg.Writer == nil {
		return nil, &ConfigError{Reason: "engine requires a remote reader and writer"}
	}
	if cfg.Controller == nil {
		return nil, &ConfigError{Reason: "engine requires a controller"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		reader:    cfg.Reader,
		writer:    cfg.Writer,
		transport: NewTransport(cfg.Controller, logger),
		rowCeiling: map[OpKind]int{
			OpCreate: cfg.CreateCeiling,
			OpUpdate: cfg.UpdateCeiling,
			OpDelete: cfg.DeleteCeiling,
		},
		logger: logger,
	}, nil
}

// Run fetches the remote state, plans the operations for local under opts,
// and dispatches them. Deletes are dispatched before creates so a target
// enforcing unique index values never rejects a recreate, with updates in
// between. Configuration errors surface before any remote mutation.
func (e *Engine) Run(ctx context.Context, local *Dataset, opts PlanOptions) (*RunResult, error) {
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	remote, err := e.reader.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote records: %w", err)
	}
	e.logger.Info("fetched remote state", "records", len(remote))

	plan, err := Plan(local, remote, opts)
	if err != nil {
		return nil, err
	}
	e.logger.Info("sync plan ready",
		"policy", string(opts.Policy),
		"creates", plan.Creates.Len(), "updates", plan.Updates.Len(), "deletes", plan.Deletes.Len())

	result := &RunResult{
		Creates: KindResult{Planned: plan.Creates.Len()},
		Updates: KindResult{Planned: plan.Updates.Len()},
		Deletes: KindResult{Planned: plan.Deletes.Len()},
	}

	// Delete-before-create ordering, per-run.
	e.runBatch(ctx, &plan.Deletes, &result.Deletes, result)
	e.runBatch(ctx, &plan.Updates, &result.Updates, result)
	e.runBatch(ctx, &plan.Creates, &result.Creates, result)

	e.logger.Info("sync run finished", "result", result.String(), "failed_chunks", len(result.Failures))
	return result, nil
}

// runBatch dispatches every chunk of one batch, stopping only on
// cancellation. Cancellation is checked between chunk dispatches; a chunk's
// bisection is atomic once begun.
func (e *Engine) runBatch(ctx context.Context, batch *OperationBatch, kr *KindResult, result *RunResult) {
	it := Chunks(batch, e.rowCeiling[batch.Kind])
	for {
		chunk, ok := it.Next()
		if !ok {
			return
		}
		if result.Cancelled || ctx.Err() != nil {
			result.Cancelled = true
			kr.Unapplied += len(chunk.Ops)
			continue
		}

		failures := e.transport.SendRecords(ctx, e.writer, chunk)
		failed := 0
		for _, f := range failures {
			failed += f.Rows
		}
		kr.Failed += failed
		kr.Succeeded += len(chunk.Ops) - failed
		result.Failures = append(result.Failures, failures...)
	}
}

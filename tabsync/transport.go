// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BlueSkyXN/XTF/control"
)

// SendFailure records one chunk (or bisected sub-chunk) that could not be
// applied. Rows is the number of operations or grid rows lost.
type SendFailure struct {
	Kind     OpKind
	StartRow int
	Rows     int
	Err      error
}

// Transport dispatches chunks through the retry/rate-limit controller and
// bisects on oversize rejections. An oversize response is a deterministic
// signal that the shape of the request, not its content, is the problem, so
// halving converges to a working shape in O(log n) extra requests without
// knowing the true limit up front.
type Transport struct {
	controller *control.Controller
	logger     *slog.Logger
}

// NewTransport returns a transport sending through ctrl.
func NewTransport(ctrl *control.Controller, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{controller: ctrl, logger: logger}
}

// SendRecords dispatches one record chunk to w. On an oversize rejection the
// chunk is split in half by row count and both halves are sent in sequence;
// a failed first half does not prevent the second, so partial progress is
// maximized and every failure is enumerated. A single-row chunk still
// rejected as oversized fails terminally.
//
// The idempotency key is fixed before the retry loop starts: every attempt
// for this chunk carries the same key, while each bisected half counts as a
// new logical batch and gets its own.
func (t *Transport) SendRecords(ctx context.Context, w RecordWriter, chunk Chunk) []SendFailure {
	key := uuid.NewString()
	err := t.controller.Do(ctx, func(ctx context.Context) error {
		return dispatchRecords(ctx, w, chunk, key)
	})
	if err == nil {
		return nil
	}

	if IsOversize(err) {
		if len(chunk.Ops) > 1 {
			first, second := splitChunk(chunk)
			t.logger.Warn("chunk rejected as too large, bisecting",
				"kind", chunk.Kind.String(), "rows", len(chunk.Ops),
				"first", len(first.Ops), "second", len(second.Ops))
			failures := t.SendRecords(ctx, w, first)
			return append(failures, t.SendRecords(ctx, w, second)...)
		}
		// No further narrowing is possible.
		err = &TerminalError{Err: err}
	}

	t.logger.Error("chunk send failed",
		"kind", chunk.Kind.String(), "start_row", chunk.StartRow,
		"rows", len(chunk.Ops), "error", err)
	return []SendFailure{{Kind: chunk.Kind, StartRow: chunk.StartRow, Rows: len(chunk.Ops), Err: err}}
}

// SendGrid dispatches one grid block to w under the same bisection rule.
func (t *Transport) SendGrid(ctx context.Context, w RangeWriter, chunk GridChunk) []SendFailure {
	err := t.controller.Do(ctx, func(ctx context.Context) error {
		if chunk.Appended {
			return w.AppendRows(ctx, chunk.Values)
		}
		return w.WriteRange(ctx, chunk.RowOff, chunk.ColOff, chunk.Values)
	})
	if err == nil {
		return nil
	}

	if IsOversize(err) {
		if len(chunk.Values) > 1 {
			first, second := splitGridChunk(chunk)
			t.logger.Warn("grid block rejected as too large, bisecting",
				"rows", len(chunk.Values), "first", len(first.Values), "second", len(second.Values))
			failures := t.SendGrid(ctx, w, first)
			return append(failures, t.SendGrid(ctx, w, second)...)
		}
		err = &TerminalError{Err: err}
	}

	t.logger.Error("grid block send failed",
		"row_off", chunk.RowOff, "col_off", chunk.ColOff,
		"rows", len(chunk.Values), "error", err)
	return []SendFailure{{Kind: OpCreate, StartRow: chunk.RowOff, Rows: len(chunk.Values), Err: err}}
}

func dispatchRecords(ctx context.Context, w RecordWriter, chunk Chunk, key string) error {
	switch chunk.Kind {
	case OpCreate:
		records := make([]map[string]any, len(chunk.Ops))
		for i, op := range chunk.Ops {
			records[i] = op.Fields
		}
		return w.CreateRecords(ctx, key, records)
	case OpUpdate:
		updates := make([]RecordUpdate, len(chunk.Ops))
		for i, op := range chunk.Ops {
			updates[i] = RecordUpdate{RecordID: op.RecordID, Fields: op.Fields}
		}
		return w.UpdateRecords(ctx, updates)
	case OpDelete:
		ids := make([]string, len(chunk.Ops))
		for i, op := range chunk.Ops {
			ids[i] = op.RecordID
		}
		return w.DeleteRecords(ctx, ids)
	default:
		return &TerminalError{Err: &ConfigError{Reason: "unknown operation kind"}}
	}
}

// splitChunk halves a chunk by row count. The first half keeps the chunk's
// starting row; the second starts immediately after it.
func splitChunk(chunk Chunk) (Chunk, Chunk) {
	mid := len(chunk.Ops) / 2
	first := Chunk{Kind: chunk.Kind, Ops: chunk.Ops[:mid], StartRow: chunk.StartRow}
	second := Chunk{Kind: chunk.Kind, Ops: chunk.Ops[mid:], StartRow: chunk.StartRow + mid}
	return first, second
}

func splitGridChunk(chunk GridChunk) (GridChunk, GridChunk) {
	mid := len(chunk.Values) / 2
	first := GridChunk{Values: chunk.Values[:mid], RowOff: chunk.RowOff, ColOff: chunk.ColOff, Appended: chunk.Appended}
	second := GridChunk{Values: chunk.Values[mid:], RowOff: chunk.RowOff + mid, ColOff: chunk.ColOff, Appended: chunk.Appended}
	return first, second
}

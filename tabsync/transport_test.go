// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BlueSkyXN/XTF/control"
)

// scriptWriter is a RecordWriter whose behavior is driven by onWrite. Every
// call is recorded as the number of rows it carried; create calls also log
// their idempotency key.
type scriptWriter struct {
	calls   [][]int // sizes per kind-agnostic call, in order
	keys    []string
	onWrite func(rows int) error
}

func (w *scriptWriter) record(rows int) error {
	w.calls = append(w.calls, []int{rows})
	if w.onWrite != nil {
		return w.onWrite(rows)
	}
	return nil
}

func (w *scriptWriter) CreateRecords(_ context.Context, key string, records []map[string]any) error {
	w.keys = append(w.keys, key)
	return w.record(len(records))
}

func (w *scriptWriter) UpdateRecords(_ context.Context, updates []RecordUpdate) error {
	return w.record(len(updates))
}

func (w *scriptWriter) DeleteRecords(_ context.Context, ids []string) error {
	return w.record(len(ids))
}

func newTestTransport(maxRetries int) *Transport {
	ctrl := control.NewController(&control.FixedWait{}, maxRetries, nil, IsTransient, nil, nil)
	return NewTransport(ctrl, nil)
}

func chunkOf(kind OpKind, n int) Chunk {
	batch := makeBatch(kind, n)
	return Chunk{Kind: kind, Ops: batch.Ops, StartRow: 0}
}

func TestSendRecordsSuccess(t *testing.T) {
	w := &scriptWriter{}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 5))

	require.Empty(t, failures)
	require.Len(t, w.calls, 1)
}

func TestSendRecordsBisectsOnOversize(t *testing.T) {
	// Chunks above 2 rows are rejected as oversized; halving a 4-row chunk
	// twice lands on two accepted 2-row sends plus the initial rejection.
	w := &scriptWriter{}
	w.onWrite = func(rows int) error {
		if rows > 2 {
			return &OversizeError{Err: errors.New("too large")}
		}
		return nil
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 4))

	require.Empty(t, failures)
	require.Len(t, w.calls, 3)
	require.Equal(t, 4, w.calls[0][0])
	require.Equal(t, 2, w.calls[1][0])
	require.Equal(t, 2, w.calls[2][0])
}

func TestSendRecordsAlwaysOversize(t *testing.T) {
	// A writer that rejects everything forces full bisection down to single
	// rows: a 4-row chunk costs 7 sends (4+2+2+1+1+1+1) and yields 4
	// terminal single-row failures. No half is skipped because its sibling
	// failed.
	w := &scriptWriter{}
	w.onWrite = func(int) error {
		return &OversizeError{Err: errors.New("too large")}
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpUpdate, 4))

	require.Len(t, w.calls, 7)
	require.Len(t, failures, 4)
	for _, f := range failures {
		require.Equal(t, 1, f.Rows)
		var te *TerminalError
		require.ErrorAs(t, f.Err, &te)
	}
	// Failures enumerate the whole chunk.
	starts := make([]int, len(failures))
	for i, f := range failures {
		starts[i] = f.StartRow
	}
	require.Equal(t, []int{0, 1, 2, 3}, starts)
}

func TestSendRecordsOddSplit(t *testing.T) {
	w := &scriptWriter{}
	w.onWrite = func(rows int) error {
		if rows > 2 {
			return &OversizeError{Err: errors.New("too large")}
		}
		return nil
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 5))

	// 5 → 2+3 → 3 splits again into 1+2.
	require.Empty(t, failures)
	require.Equal(t, 5, len(w.calls))
}

func TestSendRecordsSiblingIndependence(t *testing.T) {
	// The first half failing terminally must not stop the second half.
	w := &scriptWriter{}
	call := 0
	w.onWrite = func(rows int) error {
		call++
		switch call {
		case 1:
			return &OversizeError{Err: errors.New("too large")}
		case 2:
			return &TerminalError{Err: errors.New("validation failed")}
		default:
			return nil
		}
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 4))

	require.Len(t, w.calls, 3)
	require.Len(t, failures, 1)
	require.Equal(t, 0, failures[0].StartRow)
	require.Equal(t, 2, failures[0].Rows)
}

func TestSendRecordsKeyStableAcrossRetries(t *testing.T) {
	// The idempotency key must not change between retries of one chunk, or
	// a batch applied before a timeout gets applied twice.
	w := &scriptWriter{}
	call := 0
	w.onWrite = func(int) error {
		call++
		if call < 3 {
			return &TransientError{Err: errors.New("timeout")}
		}
		return nil
	}
	failures := newTestTransport(3).SendRecords(context.Background(), w, chunkOf(OpCreate, 4))

	require.Empty(t, failures)
	require.Len(t, w.keys, 3)
	require.NotEmpty(t, w.keys[0])
	require.Equal(t, w.keys[0], w.keys[1])
	require.Equal(t, w.keys[0], w.keys[2])
}

func TestSendRecordsKeyFreshPerBisectedHalf(t *testing.T) {
	// Each bisected half is a new logical batch with its own key.
	w := &scriptWriter{}
	w.onWrite = func(rows int) error {
		if rows > 2 {
			return &OversizeError{Err: errors.New("too large")}
		}
		return nil
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 4))

	require.Empty(t, failures)
	require.Len(t, w.keys, 3)
	require.NotEqual(t, w.keys[0], w.keys[1])
	require.NotEqual(t, w.keys[1], w.keys[2])
}

func TestSendRecordsRetriesTransient(t *testing.T) {
	w := &scriptWriter{}
	call := 0
	w.onWrite = func(int) error {
		call++
		if call == 1 {
			return &TransientError{Err: errors.New("rate limited")}
		}
		return nil
	}
	failures := newTestTransport(2).SendRecords(context.Background(), w, chunkOf(OpDelete, 3))

	require.Empty(t, failures)
	require.Len(t, w.calls, 2)
}

func TestSendRecordsTerminalFailsWholeChunk(t *testing.T) {
	w := &scriptWriter{}
	w.onWrite = func(int) error {
		return &TerminalError{Err: errors.New("permission denied")}
	}
	failures := newTestTransport(3).SendRecords(context.Background(), w, chunkOf(OpCreate, 8))

	// Terminal errors are neither retried nor bisected.
	require.Len(t, w.calls, 1)
	require.Len(t, failures, 1)
	require.Equal(t, 8, failures[0].Rows)
}

func TestSendRecordsSingleRowOversizeIsTerminal(t *testing.T) {
	w := &scriptWriter{}
	w.onWrite = func(int) error {
		return &OversizeError{Err: errors.New("cell too large")}
	}
	failures := newTestTransport(0).SendRecords(context.Background(), w, chunkOf(OpCreate, 1))

	require.Len(t, w.calls, 1)
	require.Len(t, failures, 1)
	var te *TerminalError
	require.ErrorAs(t, failures[0].Err, &te)
}

// scriptRangeWriter drives SendGrid the same way.
type scriptRangeWriter struct {
	writes  []string
	onWrite func(rows int) error
}

func (w *scriptRangeWriter) WriteRange(_ context.Context, rowOff, colOff int, values [][]any) error {
	w.writes = append(w.writes, fmt.Sprintf("write %d@%d,%d", len(values), rowOff, colOff))
	if w.onWrite != nil {
		return w.onWrite(len(values))
	}
	return nil
}

func (w *scriptRangeWriter) AppendRows(_ context.Context, values [][]any) error {
	w.writes = append(w.writes, fmt.Sprintf("append %d", len(values)))
	if w.onWrite != nil {
		return w.onWrite(len(values))
	}
	return nil
}

func TestSendGridBisectsOnOversize(t *testing.T) {
	w := &scriptRangeWriter{}
	w.onWrite = func(rows int) error {
		if rows > 2 {
			return &OversizeError{Err: errors.New("too large")}
		}
		return nil
	}
	chunk := GridChunk{Values: makeGrid(4, 2), RowOff: 10, ColOff: 5}
	failures := newTestTransport(0).SendGrid(context.Background(), w, chunk)

	require.Empty(t, failures)
	// Split halves keep their absolute offsets.
	require.Equal(t, []string{"write 4@10,5", "write 2@10,5", "write 2@12,5"}, w.writes)
}

func TestSendGridAppendDispatch(t *testing.T) {
	w := &scriptRangeWriter{}
	chunk := GridChunk{Values: makeGrid(3, 2), Appended: true}
	failures := newTestTransport(0).SendGrid(context.Background(), w, chunk)

	require.Empty(t, failures)
	require.Equal(t, []string{"append 3"}, w.writes)
}

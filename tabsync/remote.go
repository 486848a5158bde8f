// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import "context"

// RecordUpdate targets one remote record with a (possibly partial) payload.
type RecordUpdate struct {
	RecordID string
	Fields   map[string]any
}

// RecordReader supplies the current remote state for reconciliation. FetchAll
// pages internally and must terminate even under remote paging anomalies.
type RecordReader interface {
	FetchAll(ctx context.Context) ([]RemoteRecord, error)
}

// RecordWriter exposes the kind-specific bulk primitives of a row-addressed
// (record-oriented) target. Each call is a single network attempt; errors
// must be classified as *TransientError, *OversizeError or *TerminalError so
// the transport can route them.
//
// idempotencyKey is chosen by the transport once per logical batch and stays
// the same across retries of that batch, so a create applied by the remote
// before a timeout is not applied again. Implementations on services without
// idempotency support may ignore it.
type RecordWriter interface {
	CreateRecords(ctx context.Context, idempotencyKey string, records []map[string]any) error
	UpdateRecords(ctx context.Context, updates []RecordUpdate) error
	DeleteRecords(ctx context.Context, recordIDs []string) error
}

// RangeWriter exposes the bulk primitives of a range-addressed
// (grid-oriented) target. Offsets are zero-based. The same error
// classification contract as RecordWriter applies.
type RangeWriter interface {
	WriteRange(ctx context.Context, rowOff, colOff int, values [][]any) error
	AppendRows(ctx context.Context, values [][]any) error
}

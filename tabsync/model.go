// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

// Package tabsync implements the reconciliation-and-transport engine that
// pushes a local tabular dataset into a remote table service under one of
// four sync policies. The engine plans create/update/delete operations
// against the remote state, slices them into size-bounded chunks, and
// dispatches the chunks through an adaptive transport that bisects on
// oversize rejections and retries transient failures.
package tabsync

import (
	"fmt"
	"strings"
)

// Policy selects how local rows are reconciled against remote records.
type Policy string

const (
	// PolicyFull updates matched rows and creates unmatched ones.
	PolicyFull Policy = "full"
	// PolicyIncremental creates unmatched rows and leaves matches alone.
	PolicyIncremental Policy = "incremental"
	// PolicyOverwrite deletes matched remote records and recreates them
	// from local data, so the local row fully replaces the remote shape.
	PolicyOverwrite Policy = "overwrite"
	// PolicyClone deletes every remote record and creates every local row.
	PolicyClone Policy = "clone"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFull:
		return PolicyFull, nil
	case PolicyIncremental:
		return PolicyIncremental, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyClone:
		return PolicyClone, nil
	default:
		return "", &ConfigError{Field: "sync_mode", Reason: fmt.Sprintf("unknown policy %q", s)}
	}
}

// Row is one local record: column name → scalar value. The column set is
// fixed per run; order lives on the owning Dataset.
type Row map[string]any

// Dataset is an in-memory tabular snapshot of the local source. Rows are
// read-only for the duration of a run.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Grid renders the dataset as a header row followed by one slice of cell
// values per row, in column order. Missing cells render as empty strings so
// every row has the same width.
func (d *Dataset) Grid() [][]any {
	grid := make([][]any, 0, len(d.Rows)+1)
	header := make([]any, len(d.Columns))
	for i, c := range d.Columns {
		header[i] = c
	}
	grid = append(grid, header)
	for _, row := range d.Rows {
		cells := make([]any, len(d.Columns))
		for i, c := range d.Columns {
			if v, ok := row[c]; ok && v != nil {
				cells[i] = v
			} else {
				cells[i] = ""
			}
		}
		grid = append(grid, cells)
	}
	return grid
}

// RemoteRecord is a record as last observed on the remote service. The
// identifier is owned by the remote service and is never invented locally.
type RemoteRecord struct {
	ID     string
	Fields map[string]any
}

// OpKind is the closed set of operation kinds. Batches are homogeneous
// because the remote bulk primitives are kind-specific.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is one logical mutation of the remote table.
//   - OpCreate: Fields set, RecordID empty (remote assigns it).
//   - OpUpdate: RecordID and Fields set; Fields may be a strict subset of
//     columns, absent columns are left untouched remotely.
//   - OpDelete: RecordID set, Fields nil.
type Operation struct {
	Kind     OpKind
	RecordID string
	Fields   map[string]any
}

// OperationBatch is an ordered sequence of same-kind operations produced by
// one planning pass. It is created, chunked, dispatched and discarded within
// a single run.
type OperationBatch struct {
	Kind OpKind
	Ops  []Operation
}

// Len returns the number of operations in the batch.
func (b *OperationBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Ops)
}

// SyncPlan is the output of reconciliation: three homogeneous batches.
// Deletes must be dispatched before creates so that a service enforcing
// unique index values never sees the old and new record at the same time.
type SyncPlan struct {
	Creates OperationBatch
	Updates OperationBatch
	Deletes OperationBatch
}

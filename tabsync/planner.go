// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"fmt"
	"io"
	"log/slog"
)

// PlanOptions configures one reconciliation pass.
type PlanOptions struct {
	// IndexColumn is the join key between local rows and remote records.
	// Required for every policy except Clone.
	IndexColumn string

	// Policy selects the reconciliation semantics.
	Policy Policy

	// SelectiveColumns, when non-empty, restricts update payloads to the
	// named columns (the index column is always forced in so the match key
	// stays present). Create payloads are never restricted. Rejected for
	// Clone, whose contract is full replacement.
	SelectiveColumns []string

	// ProtectedColumns are excluded from update payloads entirely, so
	// server-computed cells are never clobbered. Creates still carry all
	// local values.
	ProtectedColumns map[string]struct{}

	Logger *slog.Logger
}

func (o *PlanOptions) validate() error {
	switch o.Policy {
	case PolicyFull, PolicyIncremental, PolicyOverwrite:
		if o.IndexColumn == "" {
			return &ConfigError{
				Field:  "index_column",
				Reason: fmt.Sprintf("policy %q cannot reconcile without a join key", o.Policy),
			}
		}
	case PolicyClone:
		if len(o.SelectiveColumns) > 0 {
			return &ConfigError{
				Field:  "selective_columns",
				Reason: "clone replaces records wholesale and is incompatible with partial-column updates",
			}
		}
	default:
		return &ConfigError{Field: "sync_mode", Reason: fmt.Sprintf("unknown policy %q", o.Policy)}
	}
	return nil
}

// indexKey derives the join key from a value. Missing or nil values are
// unmatched: they never collide with each other.
func indexKey(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "", false
	}
	return s, true
}

// buildRemoteIndex maps index values to record identifiers. Duplicate index
// values keep the first-seen record; later ones are logged and left out of
// update matching, which is not an error.
func buildRemoteIndex(remote []RemoteRecord, indexColumn string, logger *slog.Logger) map[string]string {
	index := make(map[string]string, len(remote))
	for _, rec := range remote {
		key, ok := indexKey(rec.Fields[indexColumn])
		if !ok {
			continue
		}
		if _, seen := index[key]; seen {
			logger.Warn("duplicate index value in remote table, keeping first match",
				"index_column", indexColumn, "value", key, "record_id", rec.ID)
			continue
		}
		index[key] = rec.ID
	}
	return index
}

// Plan reconciles the local dataset against the remote records and returns
// the create/update/delete batches for one run. It performs no I/O.
func Plan(local *Dataset, remote []RemoteRecord, opts PlanOptions) (*SyncPlan, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	plan := &SyncPlan{
		Creates: OperationBatch{Kind: OpCreate},
		Updates: OperationBatch{Kind: OpUpdate},
		Deletes: OperationBatch{Kind: OpDelete},
	}

	if opts.Policy == PolicyClone {
		for _, rec := range remote {
			plan.Deletes.Ops = append(plan.Deletes.Ops, Operation{Kind: OpDelete, RecordID: rec.ID})
		}
		for _, row := range local.Rows {
			plan.Creates.Ops = append(plan.Creates.Ops, Operation{Kind: OpCreate, Fields: fullPayload(local.Columns, row)})
		}
		return plan, nil
	}

	index := buildRemoteIndex(remote, opts.IndexColumn, opts.Logger)
	selective := selectiveSet(opts.SelectiveColumns, opts.IndexColumn)

	for _, row := range local.Rows {
		key, matched := indexKey(row[opts.IndexColumn])
		var recordID string
		if matched {
			recordID, matched = index[key]
		}

		switch {
		case !matched:
			plan.Creates.Ops = append(plan.Creates.Ops, Operation{Kind: OpCreate, Fields: fullPayload(local.Columns, row)})
		case opts.Policy == PolicyFull:
			plan.Updates.Ops = append(plan.Updates.Ops, Operation{
				Kind:     OpUpdate,
				RecordID: recordID,
				Fields:   updatePayload(local.Columns, row, selective, opts.ProtectedColumns),
			})
		case opts.Policy == PolicyIncremental:
			// Matched rows are a no-op under incremental sync.
		case opts.Policy == PolicyOverwrite:
			plan.Deletes.Ops = append(plan.Deletes.Ops, Operation{Kind: OpDelete, RecordID: recordID})
			plan.Creates.Ops = append(plan.Creates.Ops, Operation{Kind: OpCreate, Fields: fullPayload(local.Columns, row)})
		}
	}

	return plan, nil
}

func selectiveSet(columns []string, indexColumn string) map[string]struct{} {
	if len(columns) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(columns)+1)
	for _, c := range columns {
		set[c] = struct{}{}
	}
	set[indexColumn] = struct{}{}
	return set
}

// fullPayload copies every non-nil cell of the row, in column order.
func fullPayload(columns []string, row Row) map[string]any {
	fields := make(map[string]any, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok && v != nil {
			fields[c] = v
		}
	}
	return fields
}

// updatePayload applies selective-sync and protected-column filtering on top
// of the full payload.
func updatePayload(columns []string, row Row, selective, protected map[string]struct{}) map[string]any {
	fields := make(map[string]any, len(columns))
	for _, c := range columns {
		if selective != nil {
			if _, ok := selective[c]; !ok {
				continue
			}
		}
		if _, ok := protected[c]; ok {
			continue
		}
		if v, ok := row[c]; ok && v != nil {
			fields[c] = v
		}
	}
	return fields
}

// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"fmt"
	"strconv"
	"strings"
)

// formulaMarker is the literal prefix a formula cell carries when the remote
// view renders expressions instead of computed values.
const formulaMarker = "="

// DetectProtectedColumns scans a formula-rendered remote view and returns
// the set of columns holding server-computed content. A column is protected
// as soon as any observed cell in it starts with the formula marker; no
// semantic parsing is attempted.
func DetectProtectedColumns(formulaView []RemoteRecord) map[string]struct{} {
	protected := make(map[string]struct{})
	for _, rec := range formulaView {
		for col, v := range rec.Fields {
			if _, done := protected[col]; done {
				continue
			}
			if s, ok := v.(string); ok && strings.HasPrefix(strings.TrimSpace(s), formulaMarker) {
				protected[col] = struct{}{}
			}
		}
	}
	return protected
}

// ColumnDiff counts cell comparisons for one column.
type ColumnDiff struct {
	Compared   int
	Mismatched int
}

// Diff compares local rows against a computed remote view joined by
// indexColumn, reporting per-column mismatch counts. Numeric-looking values
// compare within tolerance, everything else by trimmed string equality. The
// report is purely observational and never alters a sync plan.
func Diff(local *Dataset, remoteView []RemoteRecord, indexColumn string, tolerance float64) map[string]ColumnDiff {
	byKey := make(map[string]RemoteRecord, len(remoteView))
	for _, rec := range remoteView {
		if key, ok := indexKey(rec.Fields[indexColumn]); ok {
			if _, seen := byKey[key]; !seen {
				byKey[key] = rec
			}
		}
	}

	report := make(map[string]ColumnDiff, len(local.Columns))
	for _, row := range local.Rows {
		key, ok := indexKey(row[indexColumn])
		if !ok {
			continue
		}
		rec, ok := byKey[key]
		if !ok {
			continue
		}
		for _, col := range local.Columns {
			lv, lok := row[col]
			rv, rok := rec.Fields[col]
			if !lok || !rok {
				continue
			}
			d := report[col]
			d.Compared++
			if !cellsEqual(lv, rv, tolerance) {
				d.Mismatched++
			}
			report[col] = d
		}
	}
	return report
}

func cellsEqual(a, b any, tolerance float64) bool {
	if fa, aok := asFloat(a); aok {
		if fb, bok := asFloat(b); bok {
			diff := fa - fb
			if diff < 0 {
				diff = -diff
			}
			return diff <= tolerance
		}
		return false
	}
	return strings.TrimSpace(toString(a)) == strings.TrimSpace(toString(b))
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

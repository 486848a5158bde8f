// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

// Package source loads local tabular data into the in-memory Dataset the
// sync engine works on. Readers produce read-only snapshots: whatever
// happens to the file or database afterwards does not affect a running sync.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// ReadCSV loads a CSV file whose first row is the header. Numeric-looking
// cells are parsed into float64 so the converter and diff layers can treat
// them as numbers; empty cells become nil.
func ReadCSV(path string) (*tabsync.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*tabsync.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, missing cells become nil

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	ds := &tabsync.Dataset{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(ds.Rows)+2, err)
		}
		row := make(tabsync.Row, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				break
			}
			if v := parseCell(record[i]); v != nil {
				row[col] = v
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// parseCell turns a raw CSV cell into a typed value: empty → nil, numeric →
// float64, anything else stays a string.
func parseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

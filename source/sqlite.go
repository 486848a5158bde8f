// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BlueSkyXN/XTF/tabsync"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReadSQLite loads every row of a table from a SQLite database file. The
// table name is interpolated into the query, so it is validated as a bare
// identifier first.
func ReadSQLite(ctx context.Context, path, table string) (*tabsync.Dataset, error) {
	if !identPattern.MatchString(table) {
		return nil, &tabsync.ConfigError{Field: "table", Reason: fmt.Sprintf("%q is not a valid table name", table)}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows drains a *sql.Rows into a Dataset, keeping the query's column
// order and normalizing driver byte slices to strings.
func scanRows(rows *sql.Rows) (*tabsync.Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	ds := &tabsync.Dataset{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(ds.Rows)+1, err)
		}
		row := make(tabsync.Row, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case nil:
				// absent cell
			case []byte:
				row[col] = string(v)
			case int64:
				row[col] = float64(v)
			default:
				row[col] = v
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating rows: %w", err)
	}
	return ds, nil
}

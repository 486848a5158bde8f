// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// ReadPostgres runs a query against a Postgres database and loads the result
// set as the local dataset. The query is caller-supplied, so arbitrary
// projections and joins can feed a sync run.
func ReadPostgres(ctx context.Context, connString, query string) (*tabsync.Dataset, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to run source query: %w", err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = d.Name
	}

	ds := &tabsync.Dataset{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(ds.Rows)+1, err)
		}
		row := make(tabsync.Row, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case nil:
				// absent cell
			case []byte:
				row[col] = string(v)
			case int32:
				row[col] = float64(v)
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

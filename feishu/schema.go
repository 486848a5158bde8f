// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// EnsureFields makes sure every dataset column exists on the table, creating
// missing ones with an inferred type when createMissing is set. It returns
// the resulting column → field-type map, which drives value conversion.
func EnsureFields(ctx context.Context, client *BitableClient, ds *tabsync.Dataset, createMissing bool, logger *slog.Logger) (map[string]int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fields, err := client.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table schema: %w", err)
	}

	types := make(map[string]int, len(fields))
	for _, f := range fields {
		types[f.FieldName] = f.Type
	}

	var missing []string
	for _, col := range ds.Columns {
		if _, ok := types[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return types, nil
	}
	if !createMissing {
		logger.Warn("dataset columns missing from table, values will be dropped by the remote",
			"columns", missing)
		return types, nil
	}

	for _, col := range missing {
		values := make([]any, 0, len(ds.Rows))
		for _, row := range ds.Rows {
			values = append(values, row[col])
		}
		fieldType := InferFieldType(values)
		if err := client.CreateField(ctx, col, fieldType); err != nil {
			return nil, err
		}
		types[col] = fieldType
	}
	logger.Info("created missing fields", "count", len(missing))
	return types, nil
}

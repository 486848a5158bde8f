// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are accepted when coercing strings into date cells.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ConversionStats counts how value coercion went across one run.
type ConversionStats struct {
	Converted int
	Fallback  int // values that fell back to their text form
}

// Report logs the counters when anything noteworthy happened.
func (s *ConversionStats) Report(logger *slog.Logger) {
	if s.Converted == 0 && s.Fallback == 0 {
		return
	}
	logger.Info("value conversion summary", "converted", s.Converted, "text_fallbacks", s.Fallback)
}

// ConvertValue coerces a local cell value into the shape the target Bitable
// field type expects: numbers become float64, dates become millisecond
// timestamps, checkboxes become bool. Anything that cannot be coerced falls
// back to its text form, which Bitable accepts for text fields and rejects
// loudly otherwise.
func ConvertValue(fieldType int, v any, stats *ConversionStats) any {
	if v == nil {
		return nil
	}
	switch fieldType {
	case FieldTypeNumber:
		if f, ok := toNumber(v); ok {
			stats.Converted++
			return f
		}
	case FieldTypeDate:
		if ms, ok := toTimestampMillis(v); ok {
			stats.Converted++
			return ms
		}
	case FieldTypeCheckbox:
		if b, ok := toBool(v); ok {
			stats.Converted++
			return b
		}
	}
	stats.Fallback++
	return toText(v)
}

// ConvertRow applies ConvertValue across a payload using the table's field
// types. Unknown columns pass through as text.
func ConvertRow(fields map[string]any, types map[string]int, stats *ConversionStats) map[string]any {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		if t, ok := types[name]; ok {
			out[name] = ConvertValue(t, v, stats)
		} else {
			out[name] = toText(v)
		}
	}
	return out
}

// InferFieldType guesses a Bitable field type from a column's values:
// all-numeric columns become number fields, all-date columns become date
// fields, all-boolean columns become checkboxes, everything else is text.
// Empty cells do not vote.
func InferFieldType(values []any) int {
	numbers, dates, bools, total := 0, 0, 0, 0
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		total++
		if _, ok := toNumber(v); ok {
			numbers++
		}
		if _, ok := toTimestampMillis(v); ok {
			dates++
		}
		if _, ok := toBool(v); ok {
			bools++
		}
	}
	switch {
	case total == 0:
		return FieldTypeText
	case bools == total:
		return FieldTypeCheckbox
	case numbers == total:
		return FieldTypeNumber
	case dates == total:
		return FieldTypeDate
	default:
		return FieldTypeText
	}
}

func toNumber(v any) (float64, bool) {
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

func toTimestampMillis(v any) (int64, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UnixMilli(), true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1", "是":
			return true, true
		case "false", "no", "0", "否":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", x)
	}
}

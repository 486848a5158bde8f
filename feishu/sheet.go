// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// Sheets API ceilings for one values call.
const (
	MaxSheetRowsPerCall = 5000
	MaxSheetColsPerCall = 100
)

// SheetConfig wires a SheetClient.
type SheetConfig struct {
	SpreadsheetToken string
	SheetID          string

	BaseURL    string
	HTTPClient *http.Client
	Tokens     *TokenSource
	Logger     *slog.Logger
}

// SheetClient writes cell ranges into one worksheet. It implements
// tabsync.RangeWriter; every method is a single network attempt and the
// transport above decides about retries and bisection.
type SheetClient struct {
	cfg    SheetConfig
	client *apiClient
	logger *slog.Logger
}

// NewSheetClient validates cfg and returns a client for one worksheet.
func NewSheetClient(cfg SheetConfig) (*SheetClient, error) {
	if err := ValidateToken(cfg.SpreadsheetToken, "spreadsheet_token"); err != nil {
		return nil, err
	}
	if err := ValidateToken(cfg.SheetID, "sheet_id"); err != nil {
		return nil, err
	}
	if cfg.Tokens == nil {
		return nil, &tabsync.ConfigError{Field: "tokens", Reason: "sheet client requires a token source"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SheetClient{
		cfg:    cfg,
		client: &apiClient{baseURL: cfg.BaseURL, http: cfg.HTTPClient, tokens: cfg.Tokens, logger: cfg.Logger},
		logger: cfg.Logger,
	}, nil
}

// WriteRange overwrites the cell range starting at the zero-based offsets.
// Implements part of tabsync.RangeWriter.
func (c *SheetClient) WriteRange(ctx context.Context, rowOff, colOff int, values [][]any) error {
	if len(values) == 0 {
		return nil
	}
	width := len(values[0])
	rangeStr := fmt.Sprintf("%s!%s%d:%s%d",
		c.cfg.SheetID,
		ColumnLetter(colOff+1), rowOff+1,
		ColumnLetter(colOff+width), rowOff+len(values))

	path := fmt.Sprintf("/open-apis/sheets/v2/spreadsheets/%s/values", c.cfg.SpreadsheetToken)
	_, err := c.client.call(ctx, http.MethodPut, path, nil, map[string]any{
		"valueRange": map[string]any{
			"range":  rangeStr,
			"values": values,
		},
	})
	if err != nil {
		return err
	}
	c.logger.Debug("wrote range", "range", rangeStr, "rows", len(values))
	return nil
}

// AppendRows inserts the rows after the sheet's current content; the service
// locates the insertion position itself. Implements part of
// tabsync.RangeWriter.
func (c *SheetClient) AppendRows(ctx context.Context, values [][]any) error {
	if len(values) == 0 {
		return nil
	}
	width := len(values[0])
	rangeStr := fmt.Sprintf("%s!%s:%s", c.cfg.SheetID, ColumnLetter(1), ColumnLetter(width))

	path := fmt.Sprintf("/open-apis/sheets/v2/spreadsheets/%s/values_append", c.cfg.SpreadsheetToken)
	query := url.Values{"insertDataOption": {"INSERT_ROWS"}}
	_, err := c.client.call(ctx, http.MethodPost, path, query, map[string]any{
		"valueRange": map[string]any{
			"range":  rangeStr,
			"values": values,
		},
	})
	if err != nil {
		return err
	}
	c.logger.Debug("appended rows", "rows", len(values))
	return nil
}

// ColumnLetter converts a 1-based column number to its A1-notation letters.
func ColumnLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	if letters == "" {
		return "A"
	}
	return letters
}

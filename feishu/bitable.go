// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/BlueSkyXN/XTF/control"
	"github.com/BlueSkyXN/XTF/tabsync"
)

// Bitable API ceilings. Batches above these are rejected outright, so the
// chunk planner must stay at or below them.
const (
	MaxSearchPageSize  = 100
	MaxBatchCreateSize = 1000
	MaxBatchUpdateSize = 1000
	MaxBatchDeleteSize = 500
)

// Bitable field type codes used for schema management and protected-column
// detection.
const (
	FieldTypeText     = 1
	FieldTypeNumber   = 2
	FieldTypeDate     = 5
	FieldTypeCheckbox = 7
	FieldTypeLookup   = 21
	FieldTypeFormula  = 22
)

// Field describes one Bitable column.
type Field struct {
	FieldName string `json:"field_name"`
	Type      int    `json:"type"`
}

// BitableConfig wires a BitableClient.
type BitableConfig struct {
	AppToken string
	TableID  string

	BaseURL    string
	HTTPClient *http.Client
	Tokens     *TokenSource

	// Controller guards the client's own requests (paged reads, schema
	// calls). Write primitives are single attempts; the transport retries
	// them.
	Controller *control.Controller

	PageSize int
	Logger   *slog.Logger
}

// BitableClient talks to one Bitable data table. It implements
// tabsync.RecordReader and tabsync.RecordWriter.
type BitableClient struct {
	cfg      BitableConfig
	client   *apiClient
	ctrl     *control.Controller
	pageSize int
	logger   *slog.Logger
}

// NewBitableClient validates cfg and returns a client for one table.
func NewBitableClient(cfg BitableConfig) (*BitableClient, error) {
	if err := ValidateToken(cfg.AppToken, "app_token"); err != nil {
		return nil, err
	}
	if err := ValidateToken(cfg.TableID, "table_id"); err != nil {
		return nil, err
	}
	if cfg.Tokens == nil {
		return nil, &tabsync.ConfigError{Field: "tokens", Reason: "bitable client requires a token source"}
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
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxSearchPageSize {
		pageSize = MaxSearchPageSize
	}
	ctrl := cfg.Controller
	if ctrl == nil {
		ctrl = control.NewController(&control.FixedWait{Delay: time.Second}, 0, nil, tabsync.IsTransient, nil, cfg.Logger)
	}
	return &BitableClient{
		cfg:      cfg,
		client:   &apiClient{baseURL: cfg.BaseURL, http: cfg.HTTPClient, tokens: cfg.Tokens, logger: cfg.Logger},
		ctrl:     ctrl,
		pageSize: pageSize,
		logger:   cfg.Logger,
	}, nil
}

func (c *BitableClient) tablePath(suffix string) string {
	return fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/%s", c.cfg.AppToken, c.cfg.TableID, suffix)
}

type bitableRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// FetchAll pages through every record of the table. Implements
// tabsync.RecordReader.
func (c *BitableClient) FetchAll(ctx context.Context) ([]tabsync.RemoteRecord, error) {
	return c.fetchAll(ctx, nil)
}

// FetchView pages through every record, restricted to the named fields. An
// empty non-nil slice returns record IDs only.
func (c *BitableClient) FetchView(ctx context.Context, fieldNames []string) ([]tabsync.RemoteRecord, error) {
	return c.fetchAll(ctx, fieldNames)
}

func (c *BitableClient) fetchAll(ctx context.Context, fieldNames []string) ([]tabsync.RemoteRecord, error) {
	var all []tabsync.RemoteRecord
	pageToken := ""
	pages := 0
	seen := make(map[string]struct{})

	for {
		records, next, err := c.searchPage(ctx, pageToken, fieldNames)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records page %d: %w", pages+1, err)
		}
		all = append(all, records...)
		pages++

		if next == "" {
			break
		}
		// Paging anomaly guard: a repeated page token would loop forever.
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("remote paging anomaly: page token %q repeated after %d pages", next, pages)
		}
		seen[next] = struct{}{}
		pageToken = next
	}

	c.logger.Info("fetched bitable records", "records", len(all), "pages", pages)
	return all, nil
}

func (c *BitableClient) searchPage(ctx context.Context, pageToken string, fieldNames []string) ([]tabsync.RemoteRecord, string, error) {
	query := url.Values{"page_size": {strconv.Itoa(c.pageSize)}}
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}
	body := map[string]any{}
	if fieldNames != nil {
		body["field_names"] = fieldNames
	}

	var records []tabsync.RemoteRecord
	var next string
	err := c.ctrl.Do(ctx, func(ctx context.Context) error {
		data, err := c.client.call(ctx, http.MethodPost, c.tablePath("records/search"), query, body)
		if err != nil {
			return err
		}
		var page struct {
			Items     []bitableRecord `json:"items"`
			HasMore   bool            `json:"has_more"`
			PageToken string          `json:"page_token"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("failed to decode search page: %w", err)
		}
		records = records[:0]
		for _, item := range page.Items {
			records = append(records, tabsync.RemoteRecord{ID: item.RecordID, Fields: item.Fields})
		}
		next = ""
		if page.HasMore {
			next = page.PageToken
		}
		return nil
	})
	return records, next, err
}

// CreateRecords bulk-creates records in one attempt. The caller's idempotency
// key becomes the client_token, so a retried request with the same key is a
// no-op once the server has applied the batch. Implements part of
// tabsync.RecordWriter.
func (c *BitableClient) CreateRecords(ctx context.Context, idempotencyKey string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) > MaxBatchCreateSize {
		return &tabsync.OversizeError{Err: fmt.Errorf("%d records exceed the batch_create ceiling %d", len(records), MaxBatchCreateSize)}
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	query := url.Values{
		"client_token":             {idempotencyKey},
		"ignore_consistency_check": {"true"},
		"user_id_type":             {"open_id"},
	}
	wrapped := make([]map[string]any, len(records))
	for i, fields := range records {
		wrapped[i] = map[string]any{"fields": fields}
	}
	_, err := c.client.call(ctx, http.MethodPost, c.tablePath("records/batch_create"), query, map[string]any{"records": wrapped})
	if err != nil {
		return err
	}
	c.logger.Debug("created records", "count", len(records))
	return nil
}

// UpdateRecords bulk-updates records in one attempt. Implements part of
// tabsync.RecordWriter.
func (c *BitableClient) UpdateRecords(ctx context.Context, updates []tabsync.RecordUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > MaxBatchUpdateSize {
		return &tabsync.OversizeError{Err: fmt.Errorf("%d records exceed the batch_update ceiling %d", len(updates), MaxBatchUpdateSize)}
	}

	query := url.Values{
		"ignore_consistency_check": {"true"},
		"user_id_type":             {"open_id"},
	}
	wrapped := make([]map[string]any, len(updates))
	for i, u := range updates {
		wrapped[i] = map[string]any{"record_id": u.RecordID, "fields": u.Fields}
	}
	_, err := c.client.call(ctx, http.MethodPost, c.tablePath("records/batch_update"), query, map[string]any{"records": wrapped})
	if err != nil {
		return err
	}
	c.logger.Debug("updated records", "count", len(updates))
	return nil
}

// DeleteRecords bulk-deletes records in one attempt. Implements part of
// tabsync.RecordWriter.
func (c *BitableClient) DeleteRecords(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	if len(recordIDs) > MaxBatchDeleteSize {
		return &tabsync.OversizeError{Err: fmt.Errorf("%d records exceed the batch_delete ceiling %d", len(recordIDs), MaxBatchDeleteSize)}
	}

	_, err := c.client.call(ctx, http.MethodPost, c.tablePath("records/batch_delete"), nil, map[string]any{"records": recordIDs})
	if err != nil {
		return err
	}
	c.logger.Debug("deleted records", "count", len(recordIDs))
	return nil
}

// ListFields returns the table's column schema, paged.
func (c *BitableClient) ListFields(ctx context.Context) ([]Field, error) {
	var all []Field
	pageToken := ""
	seen := make(map[string]struct{})
	for {
		query := url.Values{"page_size": {"100"}}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var page struct {
			Items     []Field `json:"items"`
			HasMore   bool    `json:"has_more"`
			PageToken string  `json:"page_token"`
		}
		err := c.ctrl.Do(ctx, func(ctx context.Context) error {
			data, err := c.client.call(ctx, http.MethodGet, c.tablePath("fields"), query, nil)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list fields: %w", err)
		}

		all = append(all, page.Items...)
		if !page.HasMore || page.PageToken == "" {
			return all, nil
		}
		// Same paging anomaly guard as fetchAll: a repeated token would
		// loop forever.
		if _, dup := seen[page.PageToken]; dup {
			return nil, fmt.Errorf("remote paging anomaly: field page token %q repeated after %d fields", page.PageToken, len(all))
		}
		seen[page.PageToken] = struct{}{}
		pageToken = page.PageToken
	}
}

// CreateField adds a column with the given type code.
func (c *BitableClient) CreateField(ctx context.Context, name string, fieldType int) error {
	err := c.ctrl.Do(ctx, func(ctx context.Context) error {
		_, err := c.client.call(ctx, http.MethodPost, c.tablePath("fields"), nil, map[string]any{
			"field_name": name,
			"type":       fieldType,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create field %q: %w", name, err)
	}
	c.logger.Info("created field", "field", name, "type", fieldType)
	return nil
}

// ProtectedColumns returns the columns whose values the server computes
// (formula and lookup fields). Updates must never write into them.
func ProtectedColumns(fields []Field) map[string]struct{} {
	protected := make(map[string]struct{})
	for _, f := range fields {
		if f.Type == FieldTypeFormula || f.Type == FieldTypeLookup {
			protected[f.FieldName] = struct{}{}
		}
	}
	return protected
}

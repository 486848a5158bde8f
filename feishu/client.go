// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// DefaultBaseURL is the Feishu open platform endpoint.
const DefaultBaseURL = "https://open.feishu.cn"

// envelope is the common Feishu response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// apiClient performs single network attempts against the Feishu open API.
// Retry and rate limiting live above it (the controller for reads, the
// transport for writes), so every method here maps exactly one HTTP exchange
// to one classified result.
type apiClient struct {
	baseURL string
	http    *http.Client
	tokens  *TokenSource
	logger  *slog.Logger
}

// call issues one request and decodes the response envelope. Network
// failures are transient; envelope and HTTP failures go through classify.
// Extra headers and auth are added here.
func (c *apiClient) call(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant access token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &tabsync.TransientError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tabsync.TransientError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, classify(resp.StatusCode, 0, string(truncate(raw, 200)))
		}
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, classify(resp.StatusCode, env.Code, env.Msg)
	}
	return env.Data, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

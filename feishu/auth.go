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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// tokenRefreshMargin refreshes the tenant token this long before its
// advertised expiry so in-flight requests never race the deadline.
const tokenRefreshMargin = 5 * time.Minute

// TokenSource fetches and caches the tenant access token. It is safe for
// concurrent use; a run shares one instance across all remote clients.
type TokenSource struct {
	appID     string
	appSecret string
	baseURL   string
	http      *http.Client
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource returns a token source for the given app credentials.
// baseURL, httpClient and clock may be zero for production defaults.
func NewTokenSource(appID, appSecret, baseURL string, httpClient *http.Client, clock clockwork.Clock, logger *slog.Logger) *TokenSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TokenSource{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   baseURL,
		http:      httpClient,
		clock:     clock,
		logger:    logger,
	}
}

// Token returns a valid tenant access token, refreshing it when the cached
// one is within the refresh margin of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.clock.Now().Before(ts.expiresAt.Add(-tokenRefreshMargin)) {
		return ts.token, nil
	}
	return ts.refresh(ctx)
}

// refresh fetches a fresh token. The auth endpoint returns its payload
// beside code/msg rather than under "data", so it is decoded directly here
// instead of through the envelope helper.
func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     ts.appID,
		"app_secret": ts.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	url := ts.baseURL + "/open-apis/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", &tabsync.TransientError{Err: fmt.Errorf("auth request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &tabsync.TransientError{Err: fmt.Errorf("failed to read auth response: %w", err)}
	}

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode auth response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.Code != 0 {
		return "", classify(resp.StatusCode, result.Code, result.Msg)
	}

	ts.token = result.TenantAccessToken
	expire := result.Expire
	if expire <= 0 {
		expire = 7200
	}
	ts.expiresAt = ts.clock.Now().Add(time.Duration(expire) * time.Second)
	ts.logger.Info("obtained tenant access token", "expires_in", expire)
	return ts.token, nil
}

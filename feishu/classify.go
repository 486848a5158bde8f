// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

// Package feishu implements the remote side of a sync run against the Feishu
// open platform: tenant token auth, the Bitable record API (row-addressed)
// and the Sheets values API (range-addressed). Every error leaving this
// package is classified into the engine's taxonomy so the transport can
// decide between retrying, bisecting and giving up.
package feishu

import (
	"fmt"
	"net/http"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// Business error codes Feishu returns with HTTP 200. Rate-limit and
// server-side congestion come back this way rather than as HTTP 429, so the
// HTTP layer alone cannot classify them.
const (
	bizTooManyRequests = 1254290 // TooManyRequest
	bizDataNotReady    = 1254607 // prior operation not finished / data too large
	bizFail            = 1254002 // generic failure (concurrency/timeout)
	bizInternalError   = 1254001 // server internal error
	bizTimeout         = 1254006 // timeout

	// bizRequestTooLarge is the Sheets "request too large" rejection that
	// drives chunk bisection.
	bizRequestTooLarge = 90227
)

// APIError is the raw remote failure before classification.
type APIError struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error: http %d, code %d, msg %q", e.HTTPStatus, e.Code, e.Msg)
}

func transientBizCode(code int) bool {
	switch code {
	case bizTooManyRequests, bizDataNotReady, bizFail, bizInternalError, bizTimeout:
		return true
	default:
		return false
	}
}

// classify wraps a remote failure into the engine's error taxonomy.
func classify(httpStatus, code int, msg string) error {
	apiErr := &APIError{HTTPStatus: httpStatus, Code: code, Msg: msg}
	switch {
	case code == bizRequestTooLarge || httpStatus == http.StatusRequestEntityTooLarge:
		return &tabsync.OversizeError{Code: code, Err: apiErr}
	case httpStatus == http.StatusTooManyRequests || httpStatus >= 500:
		return &tabsync.TransientError{Code: httpStatus, Err: apiErr}
	case transientBizCode(code):
		return &tabsync.TransientError{Code: code, Err: apiErr}
	default:
		return &tabsync.TerminalError{Code: code, Err: apiErr}
	}
}

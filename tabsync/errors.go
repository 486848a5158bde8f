// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid policy/column combination. It is surfaced
// before any remote I/O happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Reason)
}

// TransientError marks a failure that may succeed on retry: network errors,
// server 5xx, rate-limit rejections.
type TransientError struct {
	Code int // remote business code or HTTP status, 0 if not applicable
	Err  error
}

func (e *TransientError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transient remote error (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// OversizeError marks a request rejected because of its shape (too many
// rows/cells/bytes). It triggers bisection and is never retried as-is.
type OversizeError struct {
	Code int
	Err  error
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("request rejected as too large (code %d): %v", e.Code, e.Err)
}

func (e *OversizeError) Unwrap() error { return e.Err }

// TerminalError marks a non-retryable failure: client/validation errors, or
// a single-row chunk still rejected as oversized.
type TerminalError struct {
	Code int
	Err  error
}

func (e *TerminalError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("terminal remote error (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("terminal remote error: %v", e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsOversize reports whether err is a payload-too-large rejection.
func IsOversize(err error) bool {
	var oe *OversizeError
	return errors.As(err, &oe)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

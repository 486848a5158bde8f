// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package feishu

import (
	"fmt"
	"regexp"

	"github.com/BlueSkyXN/XTF/tabsync"
)

// Tokens and table IDs end up inside request URLs, so reject anything that
// could smuggle path segments or percent-escapes.
var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateToken checks that a Feishu token or identifier is safe to embed in
// a URL path. name labels the value in the error message.
func ValidateToken(token, name string) error {
	if token == "" {
		return &tabsync.ConfigError{Field: name, Reason: "must not be empty"}
	}
	if !tokenPattern.MatchString(token) {
		return &tabsync.ConfigError{
			Field:  name,
			Reason: fmt.Sprintf("%q may only contain letters, digits, underscore and hyphen", token),
		}
	}
	return nil
}

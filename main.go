// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/BlueSkyXN/XTF/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Command schemapub publishes versioned JSON Schema trees for
// environment-specific serving. It rewrites every schema's $id and
// $ref to a target URI prefix, verifies the result is fully
// resolvable, and atomically materializes it under the schema
// server's serve root.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like verify) return
		// an ExitError with the desired exit code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

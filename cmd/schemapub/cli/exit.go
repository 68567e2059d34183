// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. When a command handler returns an ExitError, the
// main function exits with the specified code without printing the
// error string; the command is expected to have already written its
// own output.
//
// This is how verify reports findings: the diagnostics go to stdout
// in full, and the process still exits 1 so CI and deployment
// tooling fail closed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. The main function checks for this
// interface on returned errors to distinguish "handled non-zero
// exit" from "unexpected error to display".
func (e *ExitError) ExitCode() int {
	return e.Code
}

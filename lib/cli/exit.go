// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have written its own
// output already, e.g. dlt-control reporting a not_supported status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps err to a process exit code: 0 for nil, the carried
// code for an ExitError, ExitUsage for validation errors and
// ExitFailure for everything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Category == CategoryValidation {
		return ExitUsage
	}
	return ExitFailure
}

// Report writes err to w unless it is an ExitError, and returns the
// exit code for it.
func Report(w io.Writer, program string, err error) int {
	code := ExitCode(err)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(w, "%s: %v\n", program, err)
	}
	return code
}

// Exit reports err on stderr and terminates the process.
func Exit(program string, err error) {
	os.Exit(Report(os.Stderr, program, err))
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// UsageError marks an error caused by bad command-line input. Fatal
// exits with code 2 for it, matching flag parsing failures.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Fatal writes "error: err" to stderr and exits: code 2 for a
// *UsageError, 1 otherwise. Use it in main() for errors from run().
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit code Fatal uses.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var usage *UsageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

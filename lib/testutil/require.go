// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the part of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	event := testutil.RequireReceive(t, events, 5*time.Second, "waiting for %s", name)
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, format string, args ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed: %s", fmt.Sprintf(format, args...))
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, fmt.Sprintf(format, args...))
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close (or deliver) within timeout.
//
//	testutil.RequireClosed(t, engine.Done(), 5*time.Second, "engine stopped")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, format string, args ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for close: %s", timeout, fmt.Sprintf(format, args...))
	}
}

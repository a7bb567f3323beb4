// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the repository's tests.
//
// [RequireReceive] and [RequireClosed] bound a channel wait with a
// timeout so a broken goroutine fails the test instead of hanging it.
// [UniqueName] produces names that do not collide across tests sharing
// a process, for room names and message bodies.
//
// Helpers fail the test with t.Fatalf; they never return errors.
package testutil

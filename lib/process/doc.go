// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the gossip binary:
// fatal error reporting to stderr for failures that happen before the
// structured logger exists, or after the terminal UI has released the
// screen.
package process

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var sequence atomic.Uint64

// UniqueName returns prefix followed by a process-wide counter:
// "room-1", "room-2", and so on.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, sequence.Add(1))
}

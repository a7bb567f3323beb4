// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, a closed connection or pipe, a broken pipe, or a
// reset or aborted connection. A gossip neighbor that exits without a
// goodbye produces one of these on the surviving side; none of them is
// worth more than a debug log line.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EPIPE, unix.ECONNRESET, unix.ECONNABORTED:
			return true
		}
	}
	return false
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net"
)

// Listener accepts inbound streams from gossip neighbors.
type Listener interface {
	// Accept blocks until a neighbor opens a stream, or returns
	// net.ErrClosed once Close has been called.
	Accept() (net.Conn, error)

	// Address returns the transport address to publish in room tickets
	// so neighbors can connect. The format is transport-specific
	// ("192.168.1.10:7891" for TCP, the node name for WebRTC).
	Address() string

	// Close shuts down the listener. Pending and later Accept calls
	// return net.ErrClosed. Streams already accepted stay open.
	Close() error
}

// Dialer opens streams to gossip neighbors.
type Dialer interface {
	// DialContext opens a stream to the neighbor at address. The format
	// matches what the neighbor's Listener.Address returns.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// ErrConnectionRefused is returned by in-process dialers when nothing
// is listening at the address.
var ErrConnectionRefused = errors.New("connection refused")

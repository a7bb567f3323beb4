// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP streams. It requires direct TCP
// reachability between peers; for NAT traversal use WebRTCTransport.
type TCPListener struct {
	listener  net.Listener
	advertise string
}

// NewTCPListener creates a TCP listener on the specified address (e.g.,
// ":7891" or "192.168.1.10:7891"). Use ":0" for a random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener}, nil
}

// SetAdvertiseAddress overrides the address returned by Address, for a
// listener bound to a wildcard or reached through port forwarding.
func (l *TCPListener) SetAdvertiseAddress(address string) {
	l.advertise = address
}

// Accept waits for the next inbound TCP connection.
func (l *TCPListener) Accept() (net.Conn, error) {
	return l.listener.Accept()
}

// Address returns the advertised address if one was set, otherwise the
// bound address in "host:port" format.
func (l *TCPListener) Address() string {
	if l.advertise != "" {
		return l.advertise
	}
	return l.listener.Addr().String()
}

// Close shuts down the TCP listener.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP streams to neighbors.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout: only the context
	// deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}

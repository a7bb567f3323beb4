// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Compile-time interface checks.
var (
	_ Listener = (*MemoryListener)(nil)
	_ Dialer   = (*MemoryNetwork)(nil)
)

// MemoryNetwork is an in-process network of named listeners. Dialing an
// address creates a net.Pipe and hands the far end to the listener
// registered under that address. Closing a listener makes later dials
// to its address fail with ErrConnectionRefused, which is how tests
// make a bootstrap peer unreachable.
type MemoryNetwork struct {
	mu        sync.Mutex
	listeners map[string]*MemoryListener
}

// NewMemoryNetwork returns an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{listeners: make(map[string]*MemoryListener)}
}

// Listen registers a listener under address. The address is any
// non-empty string; it only has to be unique within the network.
func (n *MemoryNetwork) Listen(address string) (*MemoryListener, error) {
	if address == "" {
		return nil, fmt.Errorf("memory listen: empty address")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.listeners[address]; exists {
		return nil, fmt.Errorf("memory listen %s: address already in use", address)
	}
	listener := &MemoryListener{
		network:     n,
		address:     address,
		connections: make(chan net.Conn),
		closed:      make(chan struct{}),
	}
	n.listeners[address] = listener
	return listener, nil
}

// DialContext connects to the listener at address. It blocks until the
// listener accepts, the listener closes, or ctx is done.
func (n *MemoryNetwork) DialContext(ctx context.Context, address string) (net.Conn, error) {
	n.mu.Lock()
	listener, ok := n.listeners[address]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory dial %s: %w", address, ErrConnectionRefused)
	}

	local, remote := net.Pipe()
	select {
	case listener.connections <- remote:
		return local, nil
	case <-listener.closed:
		local.Close()
		remote.Close()
		return nil, fmt.Errorf("memory dial %s: %w", address, ErrConnectionRefused)
	case <-ctx.Done():
		local.Close()
		remote.Close()
		return nil, ctx.Err()
	}
}

func (n *MemoryNetwork) remove(listener *MemoryListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if current, ok := n.listeners[listener.address]; ok && current == listener {
		delete(n.listeners, listener.address)
	}
}

// MemoryListener is a Listener registered on a MemoryNetwork.
type MemoryListener struct {
	network     *MemoryNetwork
	address     string
	connections chan net.Conn
	closed      chan struct{}
	closeOnce   sync.Once
}

// Accept waits for the next dial to this listener's address.
func (l *MemoryListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connections:
		return conn, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

// Address returns the address the listener was registered under.
func (l *MemoryListener) Address() string {
	return l.address
}

// Close unregisters the listener. It is safe to call more than once.
func (l *MemoryListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.network.remove(l)
	})
	return nil
}

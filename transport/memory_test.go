// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestMemoryNetwork_DialAccept(t *testing.T) {
	network := NewMemoryNetwork()
	listener, err := network.Listen("alpha")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer listener.Close()

	if listener.Address() != "alpha" {
		t.Errorf("Address() = %q, want alpha", listener.Address())
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := network.DialContext(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	defer client.Close()
	server := <-accepted
	if server == nil {
		t.Fatal("Accept() failed")
	}
	defer server.Close()

	go client.Write([]byte("ping"))
	buffer := make([]byte, 4)
	if _, err := io.ReadFull(server, buffer); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(buffer) != "ping" {
		t.Errorf("read %q, want ping", buffer)
	}
}

func TestMemoryNetwork_Refused(t *testing.T) {
	network := NewMemoryNetwork()
	_, err := network.DialContext(context.Background(), "nobody")
	if !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("DialContext() to unknown address = %v, want ErrConnectionRefused", err)
	}

	listener, err := network.Listen("beta")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	listener.Close()
	listener.Close()

	_, err = network.DialContext(context.Background(), "beta")
	if !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("DialContext() to closed listener = %v, want ErrConnectionRefused", err)
	}
	if _, err := listener.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Accept() after Close = %v, want net.ErrClosed", err)
	}
}

func TestMemoryNetwork_AddressReuse(t *testing.T) {
	network := NewMemoryNetwork()
	first, err := network.Listen("gamma")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	if _, err := network.Listen("gamma"); err == nil {
		t.Fatal("second Listen() on the same address succeeded")
	}
	first.Close()

	second, err := network.Listen("gamma")
	if err != nil {
		t.Fatalf("Listen() after Close error: %v", err)
	}
	second.Close()
}

func TestMemoryNetwork_DialHonorsContext(t *testing.T) {
	network := NewMemoryNetwork()
	listener, err := network.Listen("busy")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer listener.Close()

	// Nobody calls Accept, so the dial can only end through ctx.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := network.DialContext(ctx, "busy"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("DialContext() = %v, want context.DeadlineExceeded", err)
	}
}

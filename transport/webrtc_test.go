// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"
)

func newTestWebRTC(t *testing.T, ctx context.Context, signaler Signaler, name string) *WebRTCTransport {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	// Empty ICE config means host candidates only (loopback).
	transport, err := NewWebRTCTransport(signaler, name, ICEConfig{}, logger)
	if err != nil {
		t.Fatalf("NewWebRTCTransport(%q) error: %v", name, err)
	}
	transport.Start(ctx)
	t.Cleanup(func() { transport.Close() })
	return transport
}

// echo accepts streams from listener and echoes each back until the
// listener closes.
func echo(listener Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			io.Copy(conn, conn)
		}()
	}
}

func roundTrip(t *testing.T, conn net.Conn, message string) {
	t.Helper()
	if _, err := conn.Write([]byte(message)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	buffer := make([]byte, len(message))
	if _, err := io.ReadFull(conn, buffer); err != nil {
		t.Fatalf("ReadFull error: %v", err)
	}
	if string(buffer) != message {
		t.Errorf("echo = %q, want %q", buffer, message)
	}
}

func TestNewWebRTCTransport_RejectsBadNames(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	for _, name := range []string{"", "alpha|beta"} {
		if _, err := NewWebRTCTransport(NewMemorySignaler(), name, ICEConfig{}, logger); err == nil {
			t.Errorf("NewWebRTCTransport(%q) succeeded, want error", name)
		}
	}
}

// TestWebRTCTransport_DialAndAccept establishes a PeerConnection between
// two transports through a MemorySignaler and echoes bytes over a data
// channel.
func TestWebRTCTransport_DialAndAccept(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signaler := NewMemorySignaler()
	alpha := newTestWebRTC(t, ctx, signaler, "alpha")
	beta := newTestWebRTC(t, ctx, signaler, "beta")
	go echo(beta)

	if beta.Address() != "beta" {
		t.Errorf("Address() = %q, want beta", beta.Address())
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
	defer dialCancel()
	conn, err := alpha.DialContext(dialCtx, "beta")
	if err != nil {
		t.Fatalf("DialContext error: %v", err)
	}
	defer conn.Close()

	roundTrip(t, conn, "hello over webrtc")
}

// TestWebRTCTransport_ConcurrentDials opens several streams to the same
// peer at once. All of them share one PeerConnection establishment.
func TestWebRTCTransport_ConcurrentDials(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signaler := NewMemorySignaler()
	alpha := newTestWebRTC(t, ctx, signaler, "alpha")
	beta := newTestWebRTC(t, ctx, signaler, "beta")
	go echo(beta)

	const streams = 4
	var waitGroup sync.WaitGroup
	errs := make(chan error, streams)
	for index := range streams {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
			defer dialCancel()
			conn, err := alpha.DialContext(dialCtx, "beta")
			if err != nil {
				errs <- fmt.Errorf("stream %d: %w", index, err)
				return
			}
			defer conn.Close()

			message := fmt.Sprintf("stream %d", index)
			conn.Write([]byte(message))
			buffer := make([]byte, len(message))
			if _, err := io.ReadFull(conn, buffer); err != nil {
				errs <- fmt.Errorf("stream %d: %w", index, err)
				return
			}
			if string(buffer) != message {
				errs <- fmt.Errorf("stream %d: echo %q", index, buffer)
			}
		}()
	}
	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWebRTCTransport_DirectorySignaler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := t.TempDir()
	alphaSignaler, err := NewDirectorySignaler(directory)
	if err != nil {
		t.Fatalf("NewDirectorySignaler error: %v", err)
	}
	betaSignaler, err := NewDirectorySignaler(directory)
	if err != nil {
		t.Fatalf("NewDirectorySignaler error: %v", err)
	}

	alpha := newTestWebRTC(t, ctx, alphaSignaler, "alpha")
	beta := newTestWebRTC(t, ctx, betaSignaler, "beta")
	go echo(beta)

	dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
	defer dialCancel()
	conn, err := alpha.DialContext(dialCtx, "beta")
	if err != nil {
		t.Fatalf("DialContext error: %v", err)
	}
	defer conn.Close()

	roundTrip(t, conn, "signaled through files")
}

func TestWebRTCTransport_Close(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := newTestWebRTC(t, ctx, NewMemorySignaler(), "alpha")

	result := make(chan error, 1)
	go func() {
		_, err := transport.Accept()
		result <- err
	}()
	transport.Close()

	select {
	case err := <-result:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Accept after Close = %v, want net.ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Accept did not return after Close")
	}

	if _, err := transport.DialContext(ctx, "beta"); !errors.Is(err, net.ErrClosed) {
		t.Errorf("DialContext after Close = %v, want net.ErrClosed", err)
	}
}

func TestWebRTCTransport_DialSelf(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := newTestWebRTC(t, ctx, NewMemorySignaler(), "alpha")
	if _, err := transport.DialContext(ctx, "alpha"); err == nil {
		t.Error("DialContext to own name succeeded")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Compile-time interface check.
var _ net.Conn = (*DataChannelConn)(nil)

// DataChannelConn wraps a detached pion data channel as a net.Conn. The
// detached channel is stream-oriented (SCTP handles fragmentation and
// reassembly), so gossip frames flow over it exactly as over TCP.
//
// Detached channels have no deadline support of their own. A deadline
// here is a timer: when it fires the stream is closed, unblocking any
// pending Read or Write, and every later call returns
// os.ErrDeadlineExceeded. A fired deadline therefore ends the stream.
// The gossip layer only uses deadlines to bound handshakes, where a
// timeout means the stream is abandoned anyway.
type DataChannelConn struct {
	stream     io.ReadWriteCloser
	localLabel string
	peerLabel  string

	mu         sync.Mutex
	readTimer  *time.Timer
	writeTimer *time.Timer
	expired    bool

	closeOnce sync.Once
	closeErr  error
}

// NewDataChannelConn wraps a detached data channel. localLabel and
// peerLabel name the two endpoints in LocalAddr and RemoteAddr.
func NewDataChannelConn(stream io.ReadWriteCloser, localLabel, peerLabel string) *DataChannelConn {
	return &DataChannelConn{
		stream:     stream,
		localLabel: localLabel,
		peerLabel:  peerLabel,
	}
}

func (c *DataChannelConn) Read(buffer []byte) (int, error) {
	count, err := c.stream.Read(buffer)
	if err != nil && c.hasExpired() {
		return count, os.ErrDeadlineExceeded
	}
	return count, err
}

func (c *DataChannelConn) Write(buffer []byte) (int, error) {
	if c.hasExpired() {
		return 0, os.ErrDeadlineExceeded
	}
	count, err := c.stream.Write(buffer)
	if err != nil && c.hasExpired() {
		return count, os.ErrDeadlineExceeded
	}
	return count, err
}

// Close closes the underlying stream and cancels pending deadlines.
func (c *DataChannelConn) Close() error {
	c.mu.Lock()
	stopTimer(&c.readTimer)
	stopTimer(&c.writeTimer)
	c.mu.Unlock()
	return c.closeStream()
}

func (c *DataChannelConn) closeStream() error {
	c.closeOnce.Do(func() { c.closeErr = c.stream.Close() })
	return c.closeErr
}

// LocalAddr returns a synthetic address naming the local endpoint.
func (c *DataChannelConn) LocalAddr() net.Addr {
	return dataChannelAddr(c.localLabel)
}

// RemoteAddr returns a synthetic address naming the remote endpoint.
func (c *DataChannelConn) RemoteAddr() net.Addr {
	return dataChannelAddr(c.peerLabel)
}

// SetDeadline sets both read and write deadlines. A zero value clears them.
func (c *DataChannelConn) SetDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.readTimer, deadline)
	c.armLocked(&c.writeTimer, deadline)
	return nil
}

// SetReadDeadline sets the read deadline. A zero value clears it.
func (c *DataChannelConn) SetReadDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.readTimer, deadline)
	return nil
}

// SetWriteDeadline sets the write deadline. A zero value clears it.
func (c *DataChannelConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.writeTimer, deadline)
	return nil
}

// armLocked replaces the timer in *slot with one firing at deadline.
// Must be called with c.mu held.
func (c *DataChannelConn) armLocked(slot **time.Timer, deadline time.Time) {
	stopTimer(slot)
	if deadline.IsZero() || c.expired {
		return
	}
	duration := time.Until(deadline)
	if duration <= 0 {
		c.expireLocked()
		return
	}
	*slot = time.AfterFunc(duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.expireLocked()
	})
}

// expireLocked marks the conn expired and closes the stream to unblock
// pending I/O. Must be called with c.mu held.
func (c *DataChannelConn) expireLocked() {
	if c.expired {
		return
	}
	c.expired = true
	go c.closeStream()
}

func (c *DataChannelConn) hasExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func stopTimer(slot **time.Timer) {
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
}

// dataChannelAddr is a synthetic net.Addr for data channel endpoints.
type dataChannelAddr string

func (a dataChannelAddr) Network() string { return "webrtc" }
func (a dataChannelAddr) String() string  { return string(a) }

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"net"
	"sync"

	"github.com/gammazero/deque"

	"github.com/bureau-foundation/gossip/lib/codec"
)

// neighbor is one handshaken stream in a topic mesh. A reader goroutine
// decodes frames and hands them to the topic; a writer goroutine drains
// an unbounded outbox, so forwarding never blocks on a slow neighbor.
type neighbor struct {
	// address is the neighbor's advertised address, from its handshake.
	address string

	// dialer is the advertised address of whichever side dialed the
	// stream. Used to settle duplicate streams between the same pair.
	dialer string

	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder

	mu     sync.Mutex
	outbox *deque.Deque[frame]
	closed bool
	wake   chan struct{}

	closeOnce sync.Once
}

func newNeighbor(address, dialer string, conn net.Conn, encoder *codec.Encoder, decoder *codec.Decoder) *neighbor {
	return &neighbor{
		address: address,
		dialer:  dialer,
		conn:    conn,
		encoder: encoder,
		decoder: decoder,
		outbox:  deque.New[frame](),
		wake:    make(chan struct{}, 1),
	}
}

// send queues f for the writer. Frames sent after close are dropped.
func (n *neighbor) send(f frame) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.outbox.PushBack(f)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// close shuts the stream, which ends both goroutines. Safe to call
// from any goroutine, more than once.
func (n *neighbor) close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
		n.conn.Close()
		select {
		case n.wake <- struct{}{}:
		default:
		}
	})
}

// writeLoop encodes queued frames until close or a write error.
func (n *neighbor) writeLoop() {
	for {
		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			return
		}
		if n.outbox.Len() == 0 {
			n.mu.Unlock()
			<-n.wake
			continue
		}
		next := n.outbox.PopFront()
		n.mu.Unlock()

		if err := n.encoder.Encode(next); err != nil {
			n.close()
			return
		}
	}
}

// readLoop decodes frames and passes each to handle until the stream
// fails, then returns the error that ended it.
func (n *neighbor) readLoop(handle func(*neighbor, frame)) error {
	for {
		var received frame
		if err := n.decoder.Decode(&received); err != nil {
			return err
		}
		handle(n, received)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gossip

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
)

// NotificationKind classifies a Notification.
type NotificationKind int

const (
	// NeighborUp: a stream to Peer completed its handshake.
	NeighborUp NotificationKind = iota + 1

	// NeighborDown: the last stream to Peer closed.
	NeighborDown

	// Message: a message authored by Peer arrived via neighbor Via.
	Message

	// PeerDiscovered: the address Peer was learned from a neighbor.
	PeerDiscovered

	// Failed: the subscription can no longer operate. Err says why.
	// Always the final notification.
	Failed
)

func (kind NotificationKind) String() string {
	switch kind {
	case NeighborUp:
		return "neighbor-up"
	case NeighborDown:
		return "neighbor-down"
	case Message:
		return "message"
	case PeerDiscovered:
		return "peer-discovered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(kind))
	}
}

// Notification is one event on a subscription.
type Notification struct {
	Kind NotificationKind

	// Peer is the neighbor, author, or discovered address.
	Peer string

	// Via is the neighbor a Message arrived from.
	Via string

	// Payload is the decompressed message body, for Message.
	Payload []byte

	// Err is the cause, for Failed.
	Err error
}

// notifier delivers notifications in order through an unbounded queue,
// so network goroutines never block on a slow consumer. One pump
// goroutine moves queued values to the output channel and closes it
// after finish.
type notifier struct {
	mu       sync.Mutex
	queue    *deque.Deque[Notification]
	finished bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	output   chan Notification
}

func newNotifier() *notifier {
	n := &notifier{
		queue:  deque.New[Notification](),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		output: make(chan Notification),
	}
	go n.pump()
	return n
}

// push queues a notification. It reports false after finish.
func (n *notifier) push(notification Notification) bool {
	n.mu.Lock()
	if n.finished {
		n.mu.Unlock()
		return false
	}
	n.queue.PushBack(notification)
	n.mu.Unlock()
	n.signal()
	return true
}

// finish queues final (if non-nil) as the last notification. After the
// queue drains, the output channel closes.
func (n *notifier) finish(final *Notification) {
	n.mu.Lock()
	if n.finished {
		n.mu.Unlock()
		return
	}
	if final != nil {
		n.queue.PushBack(*final)
	}
	n.finished = true
	n.mu.Unlock()
	n.signal()
}

// abandon stops delivery: queued notifications are dropped and the
// output channel closes once the pump notices.
func (n *notifier) abandon() {
	n.finish(nil)
	n.stopOnce.Do(func() { close(n.stop) })
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) pump() {
	defer close(n.output)
	for {
		n.mu.Lock()
		if n.queue.Len() > 0 {
			next := n.queue.PopFront()
			n.mu.Unlock()
			select {
			case n.output <- next:
			case <-n.stop:
				return
			}
			continue
		}
		finished := n.finished
		n.mu.Unlock()
		if finished {
			return
		}
		select {
		case <-n.wake:
		case <-n.stop:
			return
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// EventRelay is the unbounded FIFO from the supervisor to the caller.
// Push never blocks, so the supervisor never waits on a slow consumer.
// It is safe for concurrent use by any number of consumers.
type EventRelay struct {
	mu     sync.Mutex
	queue  *deque.Deque[Event]
	closed bool

	// changed is closed and replaced whenever an event is pushed or the
	// relay closes, waking every waiting Next.
	changed chan struct{}
	done    chan struct{}
}

// NewEventRelay returns an empty open relay.
func NewEventRelay() *EventRelay {
	return &EventRelay{
		queue:   deque.New[Event](),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Push appends event. It reports false, dropping the event, after Close.
func (r *EventRelay) Push(event Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.queue.PushBack(event)
	r.notifyLocked()
	return true
}

// TryNext pops the oldest event, reporting false if none is queued.
func (r *EventRelay) TryNext() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue.Len() == 0 {
		return nil, false
	}
	return r.queue.PopFront(), true
}

// Next pops the oldest event, waiting for one if the relay is empty.
// Once the relay is closed and drained it returns ErrRelayClosed.
func (r *EventRelay) Next(ctx context.Context) (Event, error) {
	for {
		r.mu.Lock()
		if r.queue.Len() > 0 {
			event := r.queue.PopFront()
			r.mu.Unlock()
			return event, nil
		}
		if r.closed {
			r.mu.Unlock()
			return nil, ErrRelayClosed
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close ends the relay. Queued events remain available to TryNext and
// Next. It is safe to call more than once.
func (r *EventRelay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.notifyLocked()
	close(r.done)
}

// Done is closed by Close.
func (r *EventRelay) Done() <-chan struct{} { return r.done }

// Len returns the number of queued events.
func (r *EventRelay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

func (r *EventRelay) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"sync"
)

// DefaultCommandCapacity is the CommandQueue capacity used by Engine
// when Options.CommandCapacity is zero.
const DefaultCommandCapacity = 32

// CommandQueue is the bounded FIFO from the caller to the supervisor.
// Closing it is how the caller ends the session: commands already
// queued are still delivered, then the receive channel closes.
type CommandQueue struct {
	commands chan Command

	// done closes first in Close, releasing blocked Send calls so the
	// write lock can be taken.
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewCommandQueue returns a queue holding at most capacity commands.
// A capacity below one is treated as one.
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{
		commands: make(chan Command, max(capacity, 1)),
		done:     make(chan struct{}),
	}
}

// TrySend enqueues command without blocking. It returns
// ErrCommandQueueFull at capacity and ErrCommandQueueClosed after Close.
func (q *CommandQueue) TrySend(command Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrCommandQueueClosed
	}
	select {
	case q.commands <- command:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Send enqueues command, waiting for space until ctx is done or the
// queue closes.
func (q *CommandQueue) Send(ctx context.Context, command Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrCommandQueueClosed
	}
	select {
	case q.commands <- command:
		return nil
	case <-q.done:
		return ErrCommandQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting commands. It is safe to call more than once.
func (q *CommandQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.commands)
		q.mu.Unlock()
	})
}

// Receive is the supervisor's end of the queue.
func (q *CommandQueue) Receive() <-chan Command {
	return q.commands
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int { return len(q.commands) }

// Cap returns the queue capacity.
func (q *CommandQueue) Cap() int { return cap(q.commands) }

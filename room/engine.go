// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/gossip/lib/clock"
	"github.com/bureau-foundation/gossip/lib/ticket"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// CommandCapacity bounds the command queue. Default
	// DefaultCommandCapacity.
	CommandCapacity int

	// JoinTimeout bounds the wait for a bootstrap peer. Default
	// DefaultJoinTimeout.
	JoinTimeout time.Duration

	// DrainTimeout bounds the flush of queued sends on cancellation.
	// Default DefaultDrainTimeout.
	DrainTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Engine is one room session: a command queue, an event relay, and the
// supervisor goroutine between them. Its methods are safe for
// concurrent use.
type Engine struct {
	commands   *CommandQueue
	events     *EventRelay
	supervisor *Supervisor
	startOnce  sync.Once
}

// NewEngine returns an engine on transport. Nothing runs until Start.
func NewEngine(transport Transport, options Options) *Engine {
	if options.CommandCapacity <= 0 {
		options.CommandCapacity = DefaultCommandCapacity
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := options.Logger.With("component", "room")

	commands := NewCommandQueue(options.CommandCapacity)
	events := NewEventRelay()
	session := NewSession(transport, options.JoinTimeout, logger)
	supervisor := NewSupervisor(session, commands, events, SupervisorOptions{
		DrainTimeout: options.DrainTimeout,
		Clock:        options.Clock,
		Logger:       logger,
	})
	return &Engine{commands: commands, events: events, supervisor: supervisor}
}

// Start launches the supervisor. Cancelling ctx ends the session after
// a bounded flush of queued sends. Calls after the first do nothing.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.supervisor.Run(ctx)
	})
}

// Open asks the engine to create a room; nil topic generates one. The
// ticket arrives as a TicketReady event.
func (e *Engine) Open(topic *ticket.TopicID) error {
	return e.commands.TrySend(Open{Topic: topic})
}

// Join asks the engine to join the room text describes. Failure
// arrives as a *SessionError event of kind KindJoinFailed.
func (e *Engine) Join(text string) error {
	return e.commands.TrySend(Join{Ticket: text})
}

// Send queues a chat message. Before the session is Running it fails
// with NotActive without queueing anything; a full queue returns
// ErrCommandQueueFull, and the caller decides whether to retry.
func (e *Engine) Send(text string) error {
	if e.supervisor.State() != Running {
		return sessionError(KindNotActive, nil)
	}
	return e.commands.TrySend(Send{Text: text})
}

// Events returns the event relay.
func (e *Engine) Events() *EventRelay { return e.events }

// Commands returns the command queue, for callers that want to block
// with Send(ctx, …) instead of handling ErrCommandQueueFull.
func (e *Engine) Commands() *CommandQueue { return e.commands }

// State returns the supervisor state.
func (e *Engine) State() SupervisorState { return e.supervisor.State() }

// Close ends the session: commands already queued are processed, then
// the supervisor stops. It does not wait; use Done or Wait.
func (e *Engine) Close() {
	e.commands.Close()
}

// Done is closed once the supervisor has stopped. An engine that was
// never started is never done.
func (e *Engine) Done() <-chan struct{} { return e.supervisor.Done() }

// Wait blocks until the supervisor stops or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.supervisor.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

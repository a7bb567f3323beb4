// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gossip/lib/clock"
)

// DefaultDrainTimeout bounds the flush of queued sends after the
// supervisor's context is cancelled.
const DefaultDrainTimeout = 2 * time.Second

// SupervisorState is the supervisor's lifecycle stage.
type SupervisorState int32

const (
	Idle SupervisorState = iota
	Starting
	Running
	Draining
	Stopped
)

func (state SupervisorState) String() string {
	switch state {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("SupervisorState(%d)", int32(state))
	}
}

// SupervisorOptions configures a Supervisor. Zero values select defaults.
type SupervisorOptions struct {
	DrainTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Supervisor is the single goroutine that owns a Session. It reads
// commands and transport notifications and writes events; nothing else
// touches the session while it runs.
//
// Commands are read one at a time. A second Open or Join sent while
// the first is Starting waits in the queue: it is answered with
// AlreadyStarted once the session is Running, and dropped unanswered if
// the start fails and the supervisor stops.
type Supervisor struct {
	session  *Session
	commands *CommandQueue
	events   *EventRelay

	drainTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	// state is written only by Run and read by anyone.
	state atomic.Int32
	done  chan struct{}
}

// NewSupervisor returns an Idle supervisor. Call Run to start it.
func NewSupervisor(session *Session, commands *CommandQueue, events *EventRelay, options SupervisorOptions) *Supervisor {
	if options.DrainTimeout <= 0 {
		options.DrainTimeout = DefaultDrainTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Supervisor{
		session:      session,
		commands:     commands,
		events:       events,
		drainTimeout: options.DrainTimeout,
		clock:        options.Clock,
		logger:       options.Logger,
		done:         make(chan struct{}),
	}
}

// State returns the current state.
func (s *Supervisor) State() SupervisorState {
	return SupervisorState(s.state.Load())
}

// Done is closed when Run has returned.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) setState(state SupervisorState) {
	previous := SupervisorState(s.state.Swap(int32(state)))
	if previous != state {
		s.logger.Debug("supervisor state", "from", previous, "to", state)
	}
}

// Run drives the session until the command queue closes, ctx is
// cancelled, or the session fails. It closes the session, the command
// queue, and the event relay before returning. Call it once.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.stop()

	start, ok := s.idle(ctx)
	if !ok {
		return
	}
	if !s.start(ctx, start) {
		return
	}
	s.run(ctx)
}

// idle waits for the Open or Join that starts the session, answering
// early Sends with NotActive.
func (s *Supervisor) idle(ctx context.Context) (Command, bool) {
	for {
		select {
		case command, ok := <-s.commands.Receive():
			if !ok {
				return nil, false
			}
			switch command.(type) {
			case Open, Join:
				return command, true
			default:
				s.emit(sessionError(KindNotActive, nil))
			}
		case <-ctx.Done():
			return nil, false
		}
	}
}

// start runs Create or Join, reporting whether the session is Running.
func (s *Supervisor) start(ctx context.Context, command Command) bool {
	s.setState(Starting)

	switch command := command.(type) {
	case Open:
		created, err := s.session.Create(ctx, command.Topic)
		if err != nil {
			s.fail(err)
			return false
		}
		// Running is visible before TicketReady, so a consumer reacting
		// to the ticket can Send at once.
		s.setState(Running)
		s.emit(TicketReady{Ticket: created.String()})

	case Join:
		if err := s.session.Join(ctx, command.Ticket); err != nil {
			s.fail(err)
			return false
		}
		s.setState(Running)
	}
	return true
}

// run is the Running loop. One select services both directions; Go
// picks uniformly among ready cases, so neither starves the other.
func (s *Supervisor) run(ctx context.Context) {
	notifications := s.session.Notifications()
	for {
		select {
		case command, ok := <-s.commands.Receive():
			if !ok {
				s.setState(Draining)
				return
			}
			if ctx.Err() != nil {
				// Cancelled with commands still queued: they belong to
				// the drain, not to the dead context.
				s.drain(command)
				return
			}
			if !s.handle(ctx, command) {
				return
			}

		case notification, ok := <-notifications:
			if !ok {
				s.fail(sessionError(KindTransportUnavailable, fmt.Errorf("subscription notifications ended")))
				return
			}
			event, relevant := s.session.Normalize(notification)
			if !relevant {
				continue
			}
			if failure, isError := event.(*SessionError); isError {
				s.fail(failure)
				return
			}
			s.emit(event)

		case <-ctx.Done():
			s.drain(nil)
			return
		}
	}
}

// handle processes one command while Running, reporting false if the
// session has ended.
func (s *Supervisor) handle(ctx context.Context, command Command) bool {
	switch command := command.(type) {
	case Open, Join:
		s.emit(sessionError(KindAlreadyStarted, nil))
	case Send:
		if err := s.session.Send(ctx, command.Text); err != nil {
			failure := asSessionError(err)
			if failure.Terminal() {
				s.fail(failure)
				return false
			}
			s.emit(failure)
		}
	}
	return true
}

// drain publishes Sends already queued when ctx was cancelled, first
// among them pending if non-nil, within the drain timeout. Commands
// arriving after drain starts are refused by the closed queue.
func (s *Supervisor) drain(pending Command) {
	s.setState(Draining)
	s.commands.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timer := s.clock.AfterFunc(s.drainTimeout, cancel)
	defer timer.Stop()

	flushed := 0
	flush := func(command Command) bool {
		send, ok := command.(Send)
		if !ok {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if err := s.session.Send(ctx, send.Text); err != nil {
			s.logger.Warn("dropping queued messages during drain", "error", err)
			return false
		}
		flushed++
		return true
	}

	if pending == nil || flush(pending) {
		for command := range s.commands.Receive() {
			if !flush(command) {
				break
			}
		}
	}
	if flushed > 0 {
		s.logger.Debug("flushed queued messages", "count", flushed)
	}
}

// fail emits err as the session's final event and enters Draining.
func (s *Supervisor) fail(err error) {
	failure := asSessionError(err)
	s.logger.Warn("room session ended", "error", failure)
	s.setState(Draining)
	s.emit(failure)
}

func (s *Supervisor) emit(event Event) {
	s.events.Push(event)
}

func (s *Supervisor) stop() {
	s.setState(Draining)
	s.commands.Close()
	if err := s.session.Close(); err != nil {
		s.logger.Debug("closing subscription", "error", err)
	}
	s.events.Close()
	s.setState(Stopped)
	close(s.done)
}

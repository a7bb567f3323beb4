// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/gossip/lib/ticket"
	"github.com/bureau-foundation/gossip/room"
)

// maxLineSize bounds one stdin line in plain mode.
const maxLineSize = 64 * 1024

// plainRequest is the room a plain-mode run creates or joins.
type plainRequest struct {
	// join is the ticket to join; empty creates a room on topic.
	join  string
	topic *ticket.TopicID
}

// runPlain drives engine from stdin lines and prints its events to
// stdout until stdin ends, ctx is cancelled, or the session fails. A
// terminal session error is returned after it is printed.
func runPlain(ctx context.Context, engine *room.Engine, request plainRequest, stdin io.Reader, stdout io.Writer) error {
	engine.Start(ctx)
	var err error
	if request.join != "" {
		err = engine.Join(request.join)
	} else {
		err = engine.Open(request.topic)
	}
	if err != nil {
		engine.Close()
		return fmt.Errorf("starting session: %w", err)
	}

	printed := make(chan error, 1)
	go func() { printed <- printEvents(engine.Events(), stdout) }()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go readLines(stdin, lines, done)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				engine.Close()
				lines = nil
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			// Blocking here is the backpressure: stdin is read no
			// faster than the session accepts messages.
			if err := engine.Commands().Send(ctx, room.Send{Text: line}); err != nil {
				lines = nil
			}
		case err := <-printed:
			return err
		}
	}
}

// readLines sends each stdin line on lines and closes it at EOF.
func readLines(stdin io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}

// printEvents prints every event until the relay closes, which happens
// once the session has stopped. It returns the first terminal session
// error seen.
func printEvents(events *room.EventRelay, stdout io.Writer) error {
	var failure error
	for {
		event, err := events.Next(context.Background())
		if errors.Is(err, room.ErrRelayClosed) {
			return failure
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, formatEvent(event))
		if sessionError, ok := event.(*room.SessionError); ok && sessionError.Terminal() && failure == nil {
			failure = sessionError
		}
	}
}

// formatEvent renders one event as a line of plain-mode output.
func formatEvent(event room.Event) string {
	switch event := event.(type) {
	case room.TicketReady:
		return "ticket " + event.Ticket
	case room.MessageReceived:
		return string(event.From) + ": " + event.Text
	case room.PeerJoined:
		return "* " + string(event.Peer) + " joined"
	case room.PeerLeft:
		return "* " + string(event.Peer) + " left"
	case *room.SessionError:
		return "! " + event.Error()
	default:
		return fmt.Sprintf("? %v", event)
	}
}

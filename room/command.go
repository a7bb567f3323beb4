// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "github.com/bureau-foundation/gossip/lib/ticket"

// Command is a request from the caller to the session: Open, Join, or
// Send. Exactly one Open or Join is honored per session.
type Command interface {
	command()
}

// Open creates a room. A nil Topic generates a fresh one.
type Open struct {
	Topic *ticket.TopicID
}

// Join enters the room described by a ticket string.
type Join struct {
	Ticket string
}

// Send publishes a chat message to the room.
type Send struct {
	Text string
}

func (Open) command() {}
func (Join) command() {}
func (Send) command() {}

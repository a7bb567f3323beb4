// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "github.com/bureau-foundation/gossip/lib/ticket"

// Event is something the session reports to the caller: TicketReady,
// MessageReceived, PeerJoined, PeerLeft, or *SessionError.
type Event interface {
	event()
}

// TicketReady carries the shareable ticket of a room this session
// created. It precedes every other event of the session.
type TicketReady struct {
	Ticket string
}

// MessageReceived is a chat message from another participant.
type MessageReceived struct {
	From ticket.PeerAddress
	Text string
}

// PeerJoined reports a new direct neighbor.
type PeerJoined struct {
	Peer ticket.PeerAddress
}

// PeerLeft reports that a direct neighbor went away. It is not an error.
type PeerLeft struct {
	Peer ticket.PeerAddress
}

func (TicketReady) event()     {}
func (MessageReceived) event() {}
func (PeerJoined) event()      {}
func (PeerLeft) event()        {}

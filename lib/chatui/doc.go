// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal chat client: a bubbletea program with
// two screens.
//
// The lobby creates a room or joins one from a pasted ticket. Tickets
// are decoded before anything is sent to the engine, so a typo is
// reported in place and the user re-enters it.
//
// The chat screen shows the room ticket (ctrl+y copies it through
// OSC 52), a scrolling message log, and an input line. The model never
// touches session state: it sends commands through a room.Engine and
// renders the events the engine's relay delivers. Own messages are
// echoed locally since the network never delivers them back. A message
// the engine cannot take yet (session still joining, or command queue
// full) is kept pending and retried on a timer, in order.
//
// When a join cannot reach any peer, ctrl+r retries with a fresh engine.
package chatui

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package room is the room-session engine: it creates or joins one
// gossip topic and bridges it to a command/event interface a UI can
// drive without touching session state.
//
// Data flows through two queues. A caller pushes [Command] values into a
// bounded [CommandQueue]; a full queue is reported to the caller
// instead of blocking it. A single [Supervisor] goroutine owns the
// [Session] and the transport subscription, services commands and
// transport notifications with one select, and pushes [Event] values
// into an unbounded [EventRelay] so a slow consumer never stalls the
// network side.
//
// [Engine] wires the three together for the common case:
//
//	engine := room.NewEngine(room.NewGossipTransport(node), room.Options{Logger: logger})
//	engine.Start(ctx)
//	engine.Open(nil)
//	for {
//		event, err := engine.Events().Next(ctx)
//		if err != nil {
//			break // ErrRelayClosed once the session ends
//		}
//		switch event := event.(type) {
//		case room.TicketReady:
//			fmt.Println("share:", event.Ticket)
//		case room.MessageReceived:
//			fmt.Printf("%s: %s\n", event.From, event.Text)
//		}
//	}
//
// A session ends when the caller closes the command queue, the context
// passed to Start is cancelled, or the transport fails. Failures end
// with a *SessionError as the last event the relay delivers.
package room

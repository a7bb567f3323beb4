// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap is the chat client's key bindings.
type KeyMap struct {
	// Lobby.
	Create key.Binding // Create a new room.
	Join   key.Binding // Join the room whose ticket is in the input.

	// Chat.
	Submit     key.Binding // Send the input line.
	CopyTicket key.Binding // Copy the room ticket to the clipboard.
	Retry      key.Binding // Retry a failed join with a fresh engine.
	PageUp     key.Binding
	PageDown   key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in binding set.
var DefaultKeyMap = KeyMap{
	Create: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "create room"),
	),
	Join: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "join"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	CopyTicket: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("C-y", "copy ticket"),
	),
	Retry: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "retry join"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
)

// noticeFadeDelay is how long a status-line notice stays visible.
const noticeFadeDelay = 2 * time.Second

// noticeFadeMsg clears the notice it was scheduled for.
type noticeFadeMsg struct {
	generation int
}

// copyToClipboard sets the terminal clipboard with OSC 52, written to
// /dev/tty so it bypasses bubbletea's renderer. Terminals without OSC 52
// ignore the sequence.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			return nil
		}
		defer tty.Close()
		termenv.NewOutput(tty).Copy(text)
		return nil
	}
}

func fadeNotice(generation int) tea.Cmd {
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{generation: generation}
	})
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme is the chat client's palette, in ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Author names: this participant, and everyone else.
	SelfName lipgloss.Color
	PeerName lipgloss.Color

	// System lines: membership changes and notices.
	Notice lipgloss.Color
	Error  lipgloss.Color

	// The ticket banner.
	BannerForeground lipgloss.Color
	BannerBackground lipgloss.Color

	BorderColor lipgloss.Color
	HelpText    lipgloss.Color
}

// DefaultTheme suits dark 256-color terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelfName: lipgloss.Color("114"), // green
	PeerName: lipgloss.Color("75"),  // blue

	Notice: lipgloss.Color("220"), // amber
	Error:  lipgloss.Color("196"), // red

	BannerForeground: lipgloss.Color("255"),
	BannerBackground: lipgloss.Color("236"),

	BorderColor: lipgloss.Color("240"),
	HelpText:    lipgloss.Color("241"),
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the deploy log viewer. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Status bar.
	BarBackground lipgloss.Color
	BarForeground lipgloss.Color

	// Build state accents shown in the status bar.
	RunningAccent  lipgloss.Color
	CompleteAccent lipgloss.Color
	TimedOutAccent lipgloss.Color
	ErrorAccent    lipgloss.Color

	// Filter input chrome.
	HeaderForeground lipgloss.Color

	// Background tint for characters matched by the fuzzy filter.
	MatchBackground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	BarBackground: lipgloss.Color("236"),
	BarForeground: lipgloss.Color("252"),

	RunningAccent:  lipgloss.Color("220"), // amber
	CompleteAccent: lipgloss.Color("114"), // green
	TimedOutAccent: lipgloss.Color("208"), // orange
	ErrorAccent:    lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),

	MatchBackground: lipgloss.Color("58"), // dark amber
}

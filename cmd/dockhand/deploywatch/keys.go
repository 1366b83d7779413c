// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the deploy log viewer. Scroll
// keys not listed here (arrows, pgup/pgdown, u/d) are handled by the
// viewport's own bindings.
type KeyMap struct {
	Top            key.Binding
	Bottom         key.Binding
	FilterActivate key.Binding
	FilterClear    key.Binding
	Quit           key.Binding
}

// DefaultKeyMap is the standard set of key bindings.
var DefaultKeyMap = KeyMap{
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom (follow)"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"
)

// FilterModel implements the fzf-style fuzzy filter over buffered log
// lines. The filter narrows the viewport client-side; the stream keeps
// buffering everything, so clearing the filter restores the full log.
type FilterModel struct {
	// Input is the current filter query text.
	Input string

	// Active is true when the filter input has keyboard focus
	// (the user pressed / to start typing).
	Active bool
}

// matchedLine pairs a buffered line with its fuzzy match positions.
type matchedLine struct {
	index     int   // position in the unfiltered buffer
	positions []int // matched rune indices, for highlighting
}

// Apply runs the fuzzy matcher over lines and returns the matches in
// buffer order. Log output reads chronologically, so matches keep
// their original order rather than fzf's score order.
func (filter *FilterModel) Apply(lines []string, slab *util.Slab) []matchedLine {
	if filter.Input == "" {
		matches := make([]matchedLine, len(lines))
		for i := range lines {
			matches[i] = matchedLine{index: i}
		}
		return matches
	}

	pattern := []rune(filter.Input)
	var matches []matchedLine
	for i, line := range lines {
		result := fuzzyMatch(line, pattern, slab)
		if result.Score <= 0 {
			continue
		}
		matches = append(matches, matchedLine{index: i, positions: result.Positions})
	}
	return matches
}

// HandleRune processes a character typed while the filter is active.
// Returns true if the input changed.
func (filter *FilterModel) HandleRune(character rune) bool {
	filter.Input += string(character)
	return true
}

// HandleBackspace removes the last character from the filter input.
// Returns true if the input changed.
func (filter *FilterModel) HandleBackspace() bool {
	if len(filter.Input) == 0 {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the filter input and deactivates it.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar. When active, shows the input with a
// cursor. When inactive with text, shows the filter text. When
// inactive with no text, returns empty string (hidden).
func (filter *FilterModel) View(theme Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(theme.NormalText).
		Width(width)

	if filter.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return style.Render(" / " + filter.Input + cursor)
	}

	// Inactive but has text — show the filter as a subtle indicator.
	dimStyle := lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width)
	return dimStyle.Render(" filter: " + filter.Input)
}

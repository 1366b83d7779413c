// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Slab sizes match fzf's own defaults. One slab is reused across all
// lines in a filter pass to avoid per-line allocation.
const (
	slabChars = 100 * 1024
	slabInts  = 2048
)

// fuzzyResult holds the outcome of matching a pattern against a line.
// A zero Score means no match.
type fuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch scores pattern against text using fzf's V2 algorithm.
// Matching is case-insensitive: the pattern is lowercased here and the
// algorithm lowercases the text. Positions are rune indices into text
// for highlighting.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) fuzzyResult {
	if len(pattern) == 0 {
		return fuzzyResult{}
	}
	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return fuzzyResult{}
	}
	var matched []int
	if positions != nil {
		matched = *positions
	}
	return fuzzyResult{Score: result.Score, Positions: matched}
}

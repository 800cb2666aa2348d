// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

func init() {
	// Install fzf's default bonus scheme (word boundary and camelCase
	// bonuses). Init only fails on an unknown scheme name.
	if !algo.Init("default") {
		panic("tui: fzf algo init failed")
	}
}

// FuzzyResult is the outcome of matching a pattern against a text.
type FuzzyResult struct {
	// Matched reports whether every pattern rune was found in order.
	Matched bool
	// Score is fzf's match quality; higher is better. Only meaningful
	// when Matched is true.
	Score int
	// Positions are the rune indexes of matched characters in the
	// text, for highlight rendering. May be nil when the caller's slab
	// is exhausted; highlighting is best-effort.
	Positions []int
}

// NewSlab allocates a scratch slab for a sequence of FuzzyMatch calls.
// One slab per matching pass (e.g., one keystroke refiltering the room
// list); the slab is not safe for concurrent use.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch runs fzf's FuzzyMatchV2 against a single text. Matching
// is case-insensitive unless the pattern contains an uppercase rune
// (fzf's smart case is applied by the caller lowercasing the pattern;
// this function is strict about the caseSensitive flag it derives).
// An empty pattern matches everything with score zero.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Matched: true}
	}

	caseSensitive := false
	for _, r := range pattern {
		if r >= 'A' && r <= 'Z' {
			caseSensitive = true
			break
		}
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(caseSensitive, true, true, &chars, pattern, true, slab)
	if result.Start < 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Matched: true, Score: result.Score}
	if positions != nil {
		matched.Positions = *positions
	}
	return matched
}

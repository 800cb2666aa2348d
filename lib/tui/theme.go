// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds pieces shared by Foyer's terminal UI: the color
// theme and the fuzzy matcher behind the room list filter.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for Foyer's terminal UI. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Sender labels cycle through these so adjacent speakers are
	// distinguishable at a glance.
	SenderColors [6]lipgloss.Color

	// Message kind accents.
	NoticeText lipgloss.Color // m.notice — rendered dimmer than normal text.
	EmoteText  lipgloss.Color // m.emote — "* alice waves" style lines.
	MediaText  lipgloss.Color // image/file/video placeholders.

	// Pending sends ("sending…") and failed sends.
	PendingText lipgloss.Color
	ErrorText   lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Unread badges.
	UnreadBadge    lipgloss.Color
	HighlightBadge lipgloss.Color

	// Fuzzy filter match highlighting.
	SearchHighlightBackground lipgloss.Color
}

// SenderColor returns a stable color for a sender label. The index is
// any hash of the sender; out-of-range values wrap.
func (theme Theme) SenderColor(index int) lipgloss.Color {
	if index < 0 {
		index = -index
	}
	return theme.SenderColors[index%len(theme.SenderColors)]
}

// DefaultTheme returns Foyer's standard dark-background palette.
func DefaultTheme() Theme {
	return Theme{
		NormalText:         lipgloss.Color("252"),
		FaintText:          lipgloss.Color("243"),
		SelectedBackground: lipgloss.Color("237"),
		SelectedForeground: lipgloss.Color("255"),
		SenderColors: [6]lipgloss.Color{
			lipgloss.Color("75"),
			lipgloss.Color("150"),
			lipgloss.Color("173"),
			lipgloss.Color("140"),
			lipgloss.Color("109"),
			lipgloss.Color("180"),
		},
		NoticeText:                lipgloss.Color("245"),
		EmoteText:                 lipgloss.Color("108"),
		MediaText:                 lipgloss.Color("110"),
		PendingText:               lipgloss.Color("244"),
		ErrorText:                 lipgloss.Color("167"),
		HeaderForeground:          lipgloss.Color("110"),
		BorderColor:               lipgloss.Color("238"),
		HelpText:                  lipgloss.Color("241"),
		UnreadBadge:               lipgloss.Color("114"),
		HighlightBadge:            lipgloss.Color("203"),
		SearchHighlightBackground: lipgloss.Color("58"),
	}
}

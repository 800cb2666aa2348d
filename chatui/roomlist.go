// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/tui"
	"github.com/bureau-foundation/foyer/state"
)

// roomRow is one selectable row in the room list pane.
type roomRow struct {
	RoomID ref.RoomID
	Name   string
	Direct bool
	Phase  state.Phase
	Unread int
	// Highlight counts push the badge to the highlight color.
	Highlights int
	// Homeserver groups rows when no filter is active.
	Homeserver ref.ServerName
	// Matched rune positions in Name for filter highlighting.
	MatchPositions []int

	matchScore int
}

// buildRoomRows derives the room list from a state snapshot. With an
// empty filter the rows follow the state's activity order, grouped by
// homeserver authority. With a filter they are fuzzy-matched against
// the resolved room names and ordered by match score.
func buildRoomRows(clientState *state.ClientState, filter string, slab *util.Slab) []roomRow {
	rows := make([]roomRow, 0, len(clientState.Rooms))
	for _, room := range clientState.RoomList() {
		rows = append(rows, roomRow{
			RoomID:     room.ID,
			Name:       room.Name(clientState.SelfUserID),
			Direct:     clientState.IsDirect(room.ID),
			Phase:      room.Phase,
			Unread:     room.Unread.NotificationCount,
			Highlights: room.Unread.HighlightCount,
			Homeserver: room.Homeserver,
		})
	}

	if filter == "" {
		// Stable grouping: rows cluster by homeserver, clusters keep
		// the activity order of their most recent room.
		slices.SortStableFunc(rows, func(a, b roomRow) int {
			return strings.Compare(a.Homeserver.String(), b.Homeserver.String())
		})
		return rows
	}

	pattern := []rune(filter)
	matched := rows[:0]
	for _, row := range rows {
		result := tui.FuzzyMatch(row.Name, pattern, slab)
		if !result.Matched {
			continue
		}
		row.MatchPositions = result.Positions
		row.matchScore = result.Score
		matched = append(matched, row)
	}
	slices.SortStableFunc(matched, func(a, b roomRow) int {
		return b.matchScore - a.matchScore
	})
	return matched
}

// renderRoomList renders the room list pane. selected is the cursor
// row index into rows.
func renderRoomList(rows []roomRow, selected int, theme tui.Theme, width, height int, filtering bool) string {
	var output strings.Builder
	normal := lipgloss.NewStyle().Foreground(theme.NormalText)
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	selectedStyle := lipgloss.NewStyle().
		Foreground(theme.SelectedForeground).
		Background(theme.SelectedBackground)
	unreadStyle := lipgloss.NewStyle().Foreground(theme.UnreadBadge)
	highlightStyle := lipgloss.NewStyle().Foreground(theme.HighlightBadge)
	matchStyle := lipgloss.NewStyle().Background(theme.SearchHighlightBackground)

	lines := 0
	var lastServer ref.ServerName
	for index, row := range rows {
		if lines >= height {
			break
		}

		// Homeserver group headers, suppressed while filtering.
		if !filtering && row.Homeserver != lastServer {
			if lines >= height {
				break
			}
			output.WriteString(faint.Render(truncate(row.Homeserver.String(), width)))
			output.WriteString("\n")
			lines++
			lastServer = row.Homeserver
		}

		marker := "  "
		if row.Direct {
			marker = "@ "
		}
		if row.Phase == state.PhaseInvited {
			marker = "! "
		}

		badge := ""
		switch {
		case row.Highlights > 0:
			badge = highlightStyle.Render(fmt.Sprintf(" (%d)", row.Highlights))
		case row.Unread > 0:
			badge = unreadStyle.Render(fmt.Sprintf(" (%d)", row.Unread))
		}

		nameWidth := width - len(marker)
		name := highlightMatches(truncate(row.Name, nameWidth), row.MatchPositions, matchStyle)

		line := marker + name
		if index == selected {
			output.WriteString(selectedStyle.Render(line))
		} else if row.Unread > 0 || row.Highlights > 0 {
			output.WriteString(normal.Bold(true).Render(line))
		} else {
			output.WriteString(normal.Render(line))
		}
		output.WriteString(badge)
		output.WriteString("\n")
		lines++
	}
	return strings.TrimRight(output.String(), "\n")
}

// highlightMatches applies the match background to the runes the fuzzy
// matcher selected.
func highlightMatches(name string, positions []int, matchStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return name
	}
	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}
	var output strings.Builder
	for index, r := range []rune(name) {
		if matched[index] {
			output.WriteString(matchStyle.Render(string(r)))
		} else {
			output.WriteRune(r)
		}
	}
	return output.String()
}

// truncate cuts a string to width runes with an ellipsis.
func truncate(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

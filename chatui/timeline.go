// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/tui"
	"github.com/bureau-foundation/foyer/state"
)

// renderTimeline renders a room's message timeline followed by any
// pending sends, as one string for the viewport. Unrecognized events
// are carried in state but not rendered.
func renderTimeline(room *state.RoomState, pending []state.PendingMessage, theme tui.Theme, width int) string {
	var output strings.Builder
	for _, event := range room.Timeline {
		line := renderEvent(room, event, theme, width)
		if line == "" {
			continue
		}
		output.WriteString(line)
		output.WriteString("\n")
	}

	pendingStyle := lipgloss.NewStyle().Foreground(theme.PendingText).Italic(true)
	for _, message := range pending {
		output.WriteString(pendingStyle.Render(
			fmt.Sprintf("sending… %s", truncate(message.Content.Body, width-10))))
		output.WriteString("\n")
	}
	return strings.TrimRight(output.String(), "\n")
}

// renderEvent renders one timeline event, or "" for event types the
// timeline does not display.
func renderEvent(room *state.RoomState, event state.TimelineEvent, theme tui.Theme, width int) string {
	timestamp := lipgloss.NewStyle().Foreground(theme.FaintText).
		Render(time.UnixMilli(event.Timestamp).Format("15:04"))
	sender := state.ResolveDisplayName(room, event.Sender)
	senderLabel := lipgloss.NewStyle().
		Foreground(theme.SenderColor(senderHash(event.Sender))).
		Bold(true).
		Render(sender)

	bodyWidth := width - 8
	switch content := event.Content.(type) {
	case state.TextContent:
		return fmt.Sprintf("%s %s\n%s", timestamp, senderLabel,
			renderMessageBody(content.Body, theme, bodyWidth))

	case state.NoticeContent:
		notice := lipgloss.NewStyle().Foreground(theme.NoticeText)
		return fmt.Sprintf("%s %s\n%s", timestamp, senderLabel,
			notice.Render(wrapPlain(content.Body, bodyWidth)))

	case state.EmoteContent:
		emote := lipgloss.NewStyle().Foreground(theme.EmoteText)
		return fmt.Sprintf("%s %s", timestamp,
			emote.Render(fmt.Sprintf("* %s %s", sender, content.Body)))

	case state.ImageContent:
		return mediaLine(timestamp, senderLabel, "image", content.Body, theme)
	case state.FileContent:
		return mediaLine(timestamp, senderLabel, "file", content.Body, theme)
	case state.VideoContent:
		return mediaLine(timestamp, senderLabel, "video", content.Body, theme)

	case state.MemberContent:
		faint := lipgloss.NewStyle().Foreground(theme.FaintText)
		switch content.Membership {
		case state.MembershipJoin:
			return faint.Render(fmt.Sprintf("→ %s joined", sender))
		case state.MembershipLeave:
			return faint.Render(fmt.Sprintf("← %s left", sender))
		case state.MembershipBan:
			return faint.Render(fmt.Sprintf("× %s was banned", sender))
		case state.MembershipInvite:
			return faint.Render(fmt.Sprintf("· %s was invited", sender))
		}
		return ""

	case state.NameContent:
		faint := lipgloss.NewStyle().Foreground(theme.FaintText)
		return faint.Render(fmt.Sprintf("· %s renamed the room to %q", sender, content.Name))

	default:
		return ""
	}
}

// renderTypingLine renders the typing indicator below the timeline, or
// "" when nobody is typing. The user's own typing is not shown.
func renderTypingLine(room *state.RoomState, selfUserID ref.UserID, theme tui.Theme) string {
	var names []string
	for userID := range room.TypingUsers {
		if userID == selfUserID {
			continue
		}
		names = append(names, state.ResolveDisplayName(room, userID))
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	faint := lipgloss.NewStyle().Foreground(theme.FaintText).Italic(true)
	switch len(names) {
	case 1:
		return faint.Render(names[0] + " is typing…")
	case 2, 3:
		return faint.Render(strings.Join(names, ", ") + " are typing…")
	default:
		return faint.Render("several people are typing…")
	}
}

func mediaLine(timestamp, senderLabel, kind, body string, theme tui.Theme) string {
	media := lipgloss.NewStyle().Foreground(theme.MediaText)
	return fmt.Sprintf("%s %s %s", timestamp, senderLabel,
		media.Render(fmt.Sprintf("[%s] %s", kind, body)))
}

// wrapPlain word-wraps text at width without styling each line.
func wrapPlain(text string, width int) string {
	if width < 8 {
		width = 8
	}
	var output strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				output.WriteString(line)
				output.WriteString("\n")
				line = word
			}
		}
		output.WriteString(line)
		output.WriteString("\n")
	}
	return strings.TrimRight(output.String(), "\n")
}

// senderHash spreads sender IDs across the theme's sender colors.
func senderHash(userID ref.UserID) int {
	hash := 0
	for _, b := range []byte(userID.String()) {
		hash = hash*31 + int(b)
	}
	if hash < 0 {
		hash = -hash
	}
	return hash
}

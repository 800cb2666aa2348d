// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/foyer/client"
	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/tui"
)

// FocusRegion identifies which pane has keyboard focus.
type FocusRegion int

const (
	// FocusRooms means navigation keys move the room list cursor.
	FocusRooms FocusRegion = iota
	// FocusCompose means keystrokes go to the message input.
	FocusCompose
	// FocusFilter means keystrokes go to the room filter input.
	FocusFilter
)

// roomListWidth is the fixed width of the left pane.
const roomListWidth = 30

// snapshotMsg delivers a state generation from the Syncer through the
// bubbletea message loop.
type snapshotMsg struct {
	snapshot client.Snapshot
}

// historyLoadedMsg reports a completed backward pagination request.
type historyLoadedMsg struct {
	roomID ref.RoomID
	err    error
}

// Model is the top-level bubbletea model for the Foyer chat TUI.
type Model struct {
	ctx    context.Context
	syncer *client.Syncer
	theme  tui.Theme

	width  int
	height int
	ready  bool

	snapshot client.Snapshot

	// Room list pane.
	rows     []roomRow
	cursor   int
	selected ref.RoomID
	filter   textinput.Model
	slab     *util.Slab

	// Timeline pane.
	timeline viewport.Model

	// Compose input.
	compose textinput.Model
	typing  bool

	focus FocusRegion

	// Transient status line content.
	notice         string
	historyLoading bool
}

// New creates the chat model. The Syncer must already be running.
func New(ctx context.Context, syncer *client.Syncer, theme tui.Theme) Model {
	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "filter rooms"
	filter.CharLimit = 64

	compose := textinput.New()
	compose.Prompt = "> "
	compose.Placeholder = "message"
	compose.Focus()

	return Model{
		ctx:     ctx,
		syncer:  syncer,
		theme:   theme,
		filter:  filter,
		compose: compose,
		slab:    tui.NewSlab(),
		focus:   FocusCompose,
	}
}

// Init starts listening for state snapshots.
func (m Model) Init() tea.Cmd {
	return m.listenForSnapshot()
}

// listenForSnapshot blocks on the Syncer's snapshot channel. Re-armed
// after each delivery.
func (m Model) listenForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snapshot: <-m.syncer.Snapshots()}
	}
}

func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		timelineHeight := m.height - 4
		if timelineHeight < 1 {
			timelineHeight = 1
		}
		if !m.ready {
			m.timeline = viewport.New(m.timelineWidth(), timelineHeight)
			m.ready = true
		} else {
			m.timeline.Width = m.timelineWidth()
			m.timeline.Height = timelineHeight
		}
		m.refreshTimeline(true)
		return m, nil

	case snapshotMsg:
		m.snapshot = message.snapshot
		if message.snapshot.Err != nil {
			m.notice = fmt.Sprintf("sync error: %v (esc to dismiss)", message.snapshot.Err)
		}
		m.rebuildRows()
		m.refreshTimeline(m.timeline.AtBottom())
		return m, m.listenForSnapshot()

	case historyLoadedMsg:
		m.historyLoading = false
		if message.err != nil {
			m.notice = fmt.Sprintf("history load failed: %v (esc to dismiss)", message.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(message)
	}

	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.notice != "" {
			m.notice = ""
			m.dismissOldestFailure()
			return m, nil
		}
		if m.focus == FocusFilter {
			m.filter.SetValue("")
			m.filter.Blur()
			m.focus = FocusRooms
			m.rebuildRows()
			return m, nil
		}
		return m, nil
	case "tab":
		return m.cycleFocus(), nil
	}

	switch m.focus {
	case FocusRooms:
		return m.handleRoomListKey(key)
	case FocusFilter:
		return m.handleFilterKey(key)
	case FocusCompose:
		return m.handleComposeKey(key)
	}
	return m, nil
}

func (m Model) cycleFocus() Model {
	switch m.focus {
	case FocusRooms, FocusFilter:
		m.filter.Blur()
		m.compose.Focus()
		m.focus = FocusCompose
	case FocusCompose:
		m.compose.Blur()
		m.focus = FocusRooms
	}
	return m
}

func (m Model) handleRoomListKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "enter":
		return m.selectRoom()
	case "/":
		m.focus = FocusFilter
		return m, m.filter.Focus()
	}
	return m, nil
}

func (m Model) handleFilterKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "enter" {
		m.filter.Blur()
		m.focus = FocusRooms
		m.cursor = 0
		return m.selectRoom()
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(key)
	m.cursor = 0
	m.rebuildRows()
	return m, cmd
}

func (m Model) handleComposeKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "enter":
		body := strings.TrimSpace(m.compose.Value())
		if body == "" || m.selected.IsZero() {
			return m, nil
		}
		m.compose.SetValue("")
		m.syncer.SendText(m.ctx, m.selected, body)
		if m.typing {
			m.typing = false
			m.syncer.SetTyping(m.ctx, m.selected, false)
		}
		return m, nil

	case "pgup":
		return m.loadHistory()
	case "pgdown":
		m.timeline.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	before := m.compose.Value()
	m.compose, cmd = m.compose.Update(key)
	if !m.typing && m.compose.Value() != before && !m.selected.IsZero() {
		m.typing = true
		m.syncer.SetTyping(m.ctx, m.selected, true)
	}
	return m, cmd
}

// selectRoom switches the timeline to the room under the cursor and
// marks it read.
func (m Model) selectRoom() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.rows) {
		return m, nil
	}
	if m.typing && !m.selected.IsZero() {
		m.syncer.SetTyping(m.ctx, m.selected, false)
		m.typing = false
	}
	m.selected = m.rows[m.cursor].RoomID
	m.focus = FocusCompose
	m.compose.Focus()
	m.refreshTimeline(true)
	m.syncer.MarkRead(m.ctx, m.selected)
	return m, nil
}

// loadHistory pages older events into the selected room, scrolling up
// first if the viewport still has content above.
func (m Model) loadHistory() (tea.Model, tea.Cmd) {
	if !m.timeline.AtTop() {
		m.timeline.HalfViewUp()
		return m, nil
	}
	if m.selected.IsZero() || m.historyLoading {
		return m, nil
	}
	m.historyLoading = true
	roomID := m.selected
	return m, func() tea.Msg {
		_, err := m.syncer.LoadHistory(m.ctx, roomID)
		return historyLoadedMsg{roomID: roomID, err: err}
	}
}

// rebuildRows recomputes the room list from the current snapshot and
// keeps the cursor on the selected room where possible.
func (m *Model) rebuildRows() {
	if m.snapshot.State == nil {
		m.rows = nil
		return
	}
	m.rows = buildRoomRows(m.snapshot.State, m.filter.Value(), m.slab)
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
	if m.selected.IsZero() && len(m.rows) > 0 {
		m.selected = m.rows[0].RoomID
	}
	for index, row := range m.rows {
		if row.RoomID == m.selected && m.focus != FocusFilter {
			m.cursor = index
			break
		}
	}
}

// refreshTimeline re-renders the viewport for the selected room.
func (m *Model) refreshTimeline(scrollToBottom bool) {
	if !m.ready || m.snapshot.State == nil {
		return
	}
	room, ok := m.snapshot.State.Room(m.selected)
	if !ok {
		m.timeline.SetContent("")
		return
	}
	pending := m.syncer.Tracker().Pending(m.selected)
	m.timeline.SetContent(renderTimeline(room, pending, m.theme, m.timelineWidth()))
	if scrollToBottom {
		m.timeline.GotoBottom()
	}
}

func (m Model) timelineWidth() int {
	width := m.width - roomListWidth - 3
	if width < 20 {
		width = 20
	}
	return width
}

func (m Model) View() string {
	if !m.ready || m.snapshot.State == nil {
		return "connecting…"
	}

	listPane := m.viewRoomPane()
	rightPane := m.viewTimelinePane()

	border := lipgloss.NewStyle().Foreground(m.theme.BorderColor)
	divider := border.Render(strings.Repeat("│\n", max(1, m.height-1)))

	body := lipgloss.JoinHorizontal(lipgloss.Top, listPane, divider, rightPane)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewStatusBar())
}

func (m Model) viewRoomPane() string {
	height := m.height - 2
	var header string
	if m.focus == FocusFilter || m.filter.Value() != "" {
		header = m.filter.View()
	} else {
		header = lipgloss.NewStyle().
			Foreground(m.theme.HeaderForeground).
			Bold(true).
			Render("rooms")
	}
	list := renderRoomList(m.rows, m.cursor, m.theme, roomListWidth, height, m.filter.Value() != "")
	return lipgloss.NewStyle().Width(roomListWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, list))
}

func (m Model) viewTimelinePane() string {
	clientState := m.snapshot.State
	room, ok := clientState.Room(m.selected)
	if !ok {
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("no room selected")
	}

	header := lipgloss.NewStyle().
		Foreground(m.theme.HeaderForeground).
		Bold(true).
		Render(truncate(room.Name(clientState.SelfUserID), m.timelineWidth()))

	typingLine := renderTypingLine(room, clientState.SelfUserID, m.theme)
	if typingLine == "" {
		typingLine = " "
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		typingLine,
		m.compose.View(),
	)
}

func (m Model) viewStatusBar() string {
	help := lipgloss.NewStyle().Foreground(m.theme.HelpText)
	if m.notice != "" {
		return lipgloss.NewStyle().Foreground(m.theme.ErrorText).
			Render(truncate(m.notice, m.width))
	}
	if failures := m.syncer.Tracker().Failures(); len(failures) > 0 {
		return lipgloss.NewStyle().Foreground(m.theme.ErrorText).Render(
			truncate(fmt.Sprintf("send failed: %v (esc to dismiss)", failures[0].Err), m.width))
	}
	if !m.snapshot.Connected {
		return lipgloss.NewStyle().Foreground(m.theme.ErrorText).
			Render("disconnected — retrying…")
	}
	unread := m.snapshot.State.TotalNotifications()
	status := "tab: switch pane · /: filter · pgup: history · ctrl+c: quit"
	if unread > 0 {
		status = fmt.Sprintf("%d unread · %s", unread, status)
	}
	return help.Render(truncate(status, m.width))
}

// dismissOldestFailure clears the failure currently shown in the
// status bar.
func (m *Model) dismissOldestFailure() {
	failures := m.syncer.Tracker().Failures()
	if len(failures) > 0 {
		m.syncer.Tracker().DismissFailure(failures[0].TransactionID)
	}
}

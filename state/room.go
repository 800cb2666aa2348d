// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

// timelineDedupWindow is how many trailing timeline events a live
// append is checked against. Overlapping sync responses repeat only
// recent events, so a bounded window is sufficient and keeps appends
// O(1) on long timelines.
const timelineDedupWindow = 64

// Phase is the user's own relationship to a room, from the sync
// response section the room arrived in.
type Phase string

const (
	PhaseJoined  Phase = "joined"
	PhaseInvited Phase = "invited"
	PhaseLeft    Phase = "left"
)

// Member is a room-local view of a user, built from m.room.member
// state events. A left user keeps their last known display name so
// history renders with the name they had.
type Member struct {
	DisplayName string
	AvatarURL   string
	Membership  Membership
}

// RoomState is the per-room aggregate. Values returned from Merge and
// ApplyHistory are treated as immutable by callers; all updates go
// through those functions, which copy before mutating.
type RoomState struct {
	ID    ref.RoomID
	Phase Phase

	// Homeserver is the authority component of the room ID, derived
	// once at ingestion. Used for grouping in the room list.
	Homeserver ref.ServerName

	Members map[ref.UserID]Member

	// nameEvent and canonicalAlias hold the latest m.room.name and
	// m.room.canonical_alias state. Name() applies the resolution
	// precedence over them.
	nameEvent      string
	canonicalAlias string

	Timeline    []TimelineEvent
	TypingUsers map[ref.UserID]struct{}
	Unread      messaging.UnreadNotificationCounts

	// PrevBatchToken pages further into history. HistoryExhausted is
	// set when a history response omits its end cursor, the server's
	// signal that no earlier events exist.
	PrevBatchToken   string
	HistoryExhausted bool

	AccountData map[ref.EventType]json.RawMessage
}

// newRoomState seeds a room the client has not seen before.
func newRoomState(roomID ref.RoomID, phase Phase) *RoomState {
	return &RoomState{
		ID:          roomID,
		Phase:       phase,
		Homeserver:  roomID.ServerName(),
		Members:     make(map[ref.UserID]Member),
		TypingUsers: make(map[ref.UserID]struct{}),
		AccountData: make(map[ref.EventType]json.RawMessage),
	}
}

// clone copies the room deeply enough that mutating the copy cannot be
// observed through the original. Timeline events are immutable, so the
// slice is copied but the events are shared.
func (r *RoomState) clone() *RoomState {
	copied := *r
	copied.Members = maps.Clone(r.Members)
	copied.TypingUsers = maps.Clone(r.TypingUsers)
	copied.AccountData = maps.Clone(r.AccountData)
	copied.Timeline = slices.Clone(r.Timeline)
	return &copied
}

// Name resolves the room's display name. Precedence: explicit name
// state event, then canonical alias, then a heuristic built from the
// other joined members' display names, then the raw room ID.
// selfUserID excludes the user's own entry from the heuristic.
func (r *RoomState) Name(selfUserID ref.UserID) string {
	if r.nameEvent != "" {
		return r.nameEvent
	}
	if r.canonicalAlias != "" {
		return r.canonicalAlias
	}

	names := make([]string, 0, len(r.Members))
	for userID, member := range r.Members {
		if userID == selfUserID || member.Membership != MembershipJoin {
			continue
		}
		names = append(names, ResolveDisplayName(r, userID))
	}
	if len(names) > 0 {
		slices.Sort(names)
		return strings.Join(names, ", ")
	}

	return r.ID.String()
}

// LastEvent returns the newest timeline event, or false when the
// timeline is empty. The room list sorts by this.
func (r *RoomState) LastEvent() (TimelineEvent, bool) {
	if len(r.Timeline) == 0 {
		return TimelineEvent{}, false
	}
	return r.Timeline[len(r.Timeline)-1], true
}

// applyStateEvent folds a single state event into the room. Within one
// response, later events overwrite earlier ones for the same (type,
// state key) pair; cross-response ordering is the sync token order.
func (r *RoomState) applyStateEvent(event messaging.Event, content Content) {
	switch typed := content.(type) {
	case MemberContent:
		if event.StateKey == nil {
			return
		}
		userID := ref.NewUserID(*event.StateKey)
		member := Member{
			DisplayName: typed.DisplayName,
			AvatarURL:   typed.AvatarURL,
			Membership:  typed.Membership,
		}
		// Leave and ban events usually omit profile fields. Keep the
		// last known values so history still renders with the name the
		// user had.
		if previous, ok := r.Members[userID]; ok {
			if member.DisplayName == "" {
				member.DisplayName = previous.DisplayName
			}
			if member.AvatarURL == "" {
				member.AvatarURL = previous.AvatarURL
			}
		}
		r.Members[userID] = member
	case NameContent:
		r.nameEvent = typed.Name
	case AliasContent:
		r.canonicalAlias = typed.Alias
	}
}

// appendTimeline appends a live event after deduplicating against the
// trailing window. Duplicate IDs are dropped, not re-appended, so
// existing entries never reorder.
func (r *RoomState) appendTimeline(event TimelineEvent) {
	start := len(r.Timeline) - timelineDedupWindow
	if start < 0 {
		start = 0
	}
	for _, existing := range r.Timeline[start:] {
		if existing.EventID == event.EventID {
			return
		}
	}
	r.Timeline = append(r.Timeline, event)
}

// applyJoinedRoom folds one joined-room sync delta into the room,
// returning an updated copy. prev may be nil for a room the client has
// not seen before. prev is never mutated.
func applyJoinedRoom(prev *RoomState, roomID ref.RoomID, delta messaging.JoinedRoom) (*RoomState, error) {
	var room *RoomState
	isNew := prev == nil
	if isNew {
		room = newRoomState(roomID, PhaseJoined)
	} else {
		room = prev.clone()
		room.Phase = PhaseJoined
	}

	// State section first: it carries the state as of the start of the
	// timeline section.
	for _, event := range delta.State.Events {
		content, err := decodeContent(roomID, event)
		if err != nil {
			return nil, err
		}
		room.applyStateEvent(event, content)
	}

	// Timeline events append in arrival order. State events embedded
	// in the timeline also update current state.
	for _, event := range delta.Timeline.Events {
		timelineEvent, err := decodeTimelineEvent(roomID, event)
		if err != nil {
			return nil, err
		}
		if event.StateKey != nil {
			room.applyStateEvent(event, timelineEvent.Content)
		}
		room.appendTimeline(timelineEvent)
	}

	// The first timeline for a room establishes its history cursor. A
	// room can predate its first joined delta (seeded from an invite),
	// so "first" means the cursor is still unset, not that the room is
	// new. Later syncs only move it on a gap (limited timeline), where
	// the server discarded intermediate events.
	if prevBatch := delta.Timeline.PrevBatch; prevBatch != "" && (room.PrevBatchToken == "" || delta.Timeline.Limited) {
		room.PrevBatchToken = prevBatch
		room.HistoryExhausted = false
	}

	// The typing set is a snapshot, replaced wholesale — but only when
	// the delta actually carries a typing event. Absence leaves the
	// set unchanged.
	for _, event := range delta.Ephemeral.Events {
		if event.Type != EventTypeTyping {
			continue
		}
		var typing struct {
			UserIDs []ref.UserID `json:"user_ids"`
		}
		if err := json.Unmarshal(event.Content, &typing); err != nil {
			return nil, &DecodeError{RoomID: roomID, EventID: event.EventID, Type: event.Type, Err: err}
		}
		room.TypingUsers = make(map[ref.UserID]struct{}, len(typing.UserIDs))
		for _, userID := range typing.UserIDs {
			room.TypingUsers[userID] = struct{}{}
		}
	}

	// Per-room account data merges key by key; absent keys retained.
	for _, event := range delta.AccountData.Events {
		room.AccountData[event.Type] = event.Content
	}

	// Unread counters replace wholesale when present, else retain.
	if delta.UnreadNotifications != nil {
		room.Unread = *delta.UnreadNotifications
	}

	return room, nil
}

// applyInvitedRoom seeds or updates a room from an invite delta. The
// invite_state section is a stripped-down state snapshot.
func applyInvitedRoom(prev *RoomState, roomID ref.RoomID, delta messaging.InvitedRoom) (*RoomState, error) {
	var room *RoomState
	if prev == nil {
		room = newRoomState(roomID, PhaseInvited)
	} else {
		room = prev.clone()
		room.Phase = PhaseInvited
	}

	for _, event := range delta.InviteState.Events {
		content, err := decodeContent(roomID, event)
		if err != nil {
			return nil, err
		}
		room.applyStateEvent(event, content)
	}
	return room, nil
}

// applyLeftRoom tombstones a room the user has left. The room stays in
// the client state so its history remains readable.
func applyLeftRoom(prev *RoomState, roomID ref.RoomID, delta messaging.LeftRoom) (*RoomState, error) {
	var room *RoomState
	if prev == nil {
		room = newRoomState(roomID, PhaseLeft)
	} else {
		room = prev.clone()
		room.Phase = PhaseLeft
	}

	for _, event := range delta.State.Events {
		content, err := decodeContent(roomID, event)
		if err != nil {
			return nil, err
		}
		room.applyStateEvent(event, content)
	}
	for _, event := range delta.Timeline.Events {
		timelineEvent, err := decodeTimelineEvent(roomID, event)
		if err != nil {
			return nil, err
		}
		if event.StateKey != nil {
			room.applyStateEvent(event, timelineEvent.Content)
		}
		room.appendTimeline(timelineEvent)
	}
	room.TypingUsers = make(map[ref.UserID]struct{})
	return room, nil
}

// ApplyHistory folds a backward pagination response into the room,
// returning an updated copy. The server returns the chunk newest-first;
// it is normalized to chronological order and prepended at the head.
// Event IDs already present anywhere in the timeline are dropped. An
// absent end cursor marks history as exhausted; otherwise the cursor
// advances even for an empty chunk.
func ApplyHistory(prev *RoomState, response *messaging.RoomMessagesResponse) (*RoomState, error) {
	room := prev.clone()

	existing := make(map[ref.EventID]struct{}, len(room.Timeline))
	for _, event := range room.Timeline {
		existing[event.EventID] = struct{}{}
	}

	// Walk the newest-first chunk in reverse so the prepended block is
	// chronological.
	prepend := make([]TimelineEvent, 0, len(response.Chunk))
	for i := len(response.Chunk) - 1; i >= 0; i-- {
		event, err := decodeTimelineEvent(room.ID, response.Chunk[i])
		if err != nil {
			return nil, err
		}
		if _, dup := existing[event.EventID]; dup {
			continue
		}
		existing[event.EventID] = struct{}{}
		prepend = append(prepend, event)
	}
	if len(prepend) > 0 {
		room.Timeline = append(prepend, room.Timeline...)
	}

	if response.End == "" {
		room.HistoryExhausted = true
	} else {
		room.PrevBatchToken = response.End
	}
	return room, nil
}

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

// ClientState is the top-level aggregate the rest of the application
// reads as ground truth. It is created at login, discarded at logout,
// and replaced (never mutated in place) by each Merge. Callers must
// treat a ClientState and everything reachable from it as read-only.
type ClientState struct {
	// SelfUserID is the logged-in user, set once at construction. The
	// room name heuristic and send reconciliation depend on it.
	SelfUserID ref.UserID

	// NextBatchToken is the sync cursor. It only moves forward: a
	// failed merge leaves it untouched, and each successful merge
	// takes the response's token unconditionally.
	NextBatchToken string

	Rooms       map[ref.RoomID]*RoomState
	AccountData map[ref.EventType]json.RawMessage
}

// NewClientState creates the empty state for a fresh login.
func NewClientState(selfUserID ref.UserID) *ClientState {
	return &ClientState{
		SelfUserID:  selfUserID,
		Rooms:       make(map[ref.RoomID]*RoomState),
		AccountData: make(map[ref.EventType]json.RawMessage),
	}
}

// clone shallow-copies the aggregate: the maps are fresh, the room
// pointers shared. Merge replaces the pointer for every room it
// touches, so untouched rooms stay shared between generations.
func (c *ClientState) clone() *ClientState {
	return &ClientState{
		SelfUserID:     c.SelfUserID,
		NextBatchToken: c.NextBatchToken,
		Rooms:          maps.Clone(c.Rooms),
		AccountData:    maps.Clone(c.AccountData),
	}
}

// Room returns the state for a room, or false if the client has never
// seen it.
func (c *ClientState) Room(roomID ref.RoomID) (*RoomState, bool) {
	room, ok := c.Rooms[roomID]
	return room, ok
}

// RoomList returns all rooms ordered by most recent timeline activity,
// newest first. Rooms with no timeline sort last, by room ID for
// stability.
func (c *ClientState) RoomList() []*RoomState {
	rooms := make([]*RoomState, 0, len(c.Rooms))
	for _, room := range c.Rooms {
		rooms = append(rooms, room)
	}
	slices.SortFunc(rooms, func(a, b *RoomState) int {
		lastA, okA := a.LastEvent()
		lastB, okB := b.LastEvent()
		switch {
		case okA && okB:
			if lastA.Timestamp != lastB.Timestamp {
				if lastA.Timestamp > lastB.Timestamp {
					return -1
				}
				return 1
			}
		case okA:
			return -1
		case okB:
			return 1
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return rooms
}

// UnreadCounts returns a room's unread counters; zero counters for an
// unknown room.
func (c *ClientState) UnreadCounts(roomID ref.RoomID) messaging.UnreadNotificationCounts {
	if room, ok := c.Rooms[roomID]; ok {
		return room.Unread
	}
	return messaging.UnreadNotificationCounts{}
}

// TotalNotifications sums notification counts across joined rooms,
// for the terminal title bar.
func (c *ClientState) TotalNotifications() int {
	total := 0
	for _, room := range c.Rooms {
		if room.Phase == PhaseJoined {
			total += room.Unread.NotificationCount
		}
	}
	return total
}

// DirectRooms unpacks the m.direct account data mapping of user ID to
// the rooms that are 1:1 conversations with them. Malformed or absent
// account data yields nil; this mapping only affects display grouping.
func (c *ClientState) DirectRooms() map[ref.UserID][]ref.RoomID {
	raw, ok := c.AccountData[EventTypeDirect]
	if !ok {
		return nil
	}
	var direct map[ref.UserID][]ref.RoomID
	if err := json.Unmarshal(raw, &direct); err != nil {
		return nil
	}
	return direct
}

// IsDirect reports whether a room is a 1:1 conversation per m.direct.
func (c *ClientState) IsDirect(roomID ref.RoomID) bool {
	_, ok := c.DirectPeer(roomID)
	return ok
}

// DirectPeer returns the user a direct room is the conversation with,
// or false when the room is not listed in m.direct.
func (c *ClientState) DirectPeer(roomID ref.RoomID) (ref.UserID, bool) {
	for userID, rooms := range c.DirectRooms() {
		if slices.Contains(rooms, roomID) {
			return userID, true
		}
	}
	return ref.UserID{}, false
}

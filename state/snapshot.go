// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

// Snapshot is the serializable form of a ClientState, used by the disk
// cache so the client can render instantly at startup and resume the
// sync stream from the stored token. Ephemeral state (typing sets) is
// deliberately absent. Timeline content is stored in wire form and
// re-decoded on restore, so the tagged union never needs to serialize.
type Snapshot struct {
	SelfUserID     ref.UserID
	NextBatchToken string
	Rooms          []RoomSnapshot
	AccountData    map[ref.EventType]json.RawMessage
}

// RoomSnapshot is the serializable form of one RoomState.
type RoomSnapshot struct {
	ID               ref.RoomID
	Phase            Phase
	Members          map[ref.UserID]Member
	NameEvent        string
	CanonicalAlias   string
	Timeline         []EventSnapshot
	Unread           messaging.UnreadNotificationCounts
	PrevBatchToken   string
	HistoryExhausted bool
	AccountData      map[ref.EventType]json.RawMessage
}

// EventSnapshot is a timeline event in wire form.
type EventSnapshot struct {
	EventID   ref.EventID
	Type      ref.EventType
	Sender    ref.UserID
	Timestamp int64
	Content   json.RawMessage
}

// TakeSnapshot converts the client state into its serializable form.
func (c *ClientState) TakeSnapshot() *Snapshot {
	snapshot := &Snapshot{
		SelfUserID:     c.SelfUserID,
		NextBatchToken: c.NextBatchToken,
		Rooms:          make([]RoomSnapshot, 0, len(c.Rooms)),
		AccountData:    c.AccountData,
	}
	for _, room := range c.RoomList() {
		events := make([]EventSnapshot, len(room.Timeline))
		for i, event := range room.Timeline {
			events[i] = EventSnapshot{
				EventID:   event.EventID,
				Type:      event.Type,
				Sender:    event.Sender,
				Timestamp: event.Timestamp,
				Content:   event.Raw,
			}
		}
		snapshot.Rooms = append(snapshot.Rooms, RoomSnapshot{
			ID:               room.ID,
			Phase:            room.Phase,
			Members:          room.Members,
			NameEvent:        room.nameEvent,
			CanonicalAlias:   room.canonicalAlias,
			Timeline:         events,
			Unread:           room.Unread,
			PrevBatchToken:   room.PrevBatchToken,
			HistoryExhausted: room.HistoryExhausted,
			AccountData:      room.AccountData,
		})
	}
	return snapshot
}

// RestoreSnapshot rebuilds a ClientState from its serializable form,
// re-decoding timeline content. A decode failure means the cache was
// written by an incompatible version; the caller discards it and falls
// back to a fresh initial sync.
func RestoreSnapshot(snapshot *Snapshot) (*ClientState, error) {
	client := NewClientState(snapshot.SelfUserID)
	client.NextBatchToken = snapshot.NextBatchToken
	if snapshot.AccountData != nil {
		client.AccountData = snapshot.AccountData
	}

	for _, cached := range snapshot.Rooms {
		room := newRoomState(cached.ID, cached.Phase)
		if cached.Members != nil {
			room.Members = cached.Members
		}
		room.nameEvent = cached.NameEvent
		room.canonicalAlias = cached.CanonicalAlias
		room.Unread = cached.Unread
		room.PrevBatchToken = cached.PrevBatchToken
		room.HistoryExhausted = cached.HistoryExhausted
		if cached.AccountData != nil {
			room.AccountData = cached.AccountData
		}

		room.Timeline = make([]TimelineEvent, 0, len(cached.Timeline))
		for _, event := range cached.Timeline {
			decoded, err := decodeTimelineEvent(cached.ID, messaging.Event{
				EventID:        event.EventID,
				Type:           event.Type,
				Sender:         event.Sender,
				OriginServerTS: event.Timestamp,
				Content:        event.Content,
			})
			if err != nil {
				return nil, err
			}
			room.Timeline = append(room.Timeline, decoded)
		}
		client.Rooms[cached.ID] = room
	}
	return client, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

// Merge folds a sync response into the client state, returning a new
// state. prev is never mutated, so the caller keeps a valid state on
// failure.
//
// The merge is atomic: every room delta decodes and applies onto
// copies, and the first *DecodeError discards all of them. Well-formed
// events the client does not interpret are not errors; they are
// carried opaquely.
//
// NextBatchToken takes the response's value unconditionally. The
// caller serializes merges (one at a time, in arrival order) and
// issues one sync request at a time, which is what makes the token
// monotonic; re-merging the same response is harmless because the
// timeline deduplicates by event ID and the snapshot sections (typing,
// unread counters) replace wholesale.
func Merge(prev *ClientState, response *messaging.SyncResponse) (*ClientState, error) {
	next := prev.clone()

	for roomID, delta := range response.Rooms.Join {
		room, err := applyJoinedRoom(next.Rooms[roomID], roomID, delta)
		if err != nil {
			return nil, err
		}
		next.Rooms[roomID] = room
	}

	for roomID, delta := range response.Rooms.Invite {
		room, err := applyInvitedRoom(next.Rooms[roomID], roomID, delta)
		if err != nil {
			return nil, err
		}
		next.Rooms[roomID] = room
	}

	for roomID, delta := range response.Rooms.Leave {
		room, err := applyLeftRoom(next.Rooms[roomID], roomID, delta)
		if err != nil {
			return nil, err
		}
		next.Rooms[roomID] = room
	}

	// Global account data: delta keys overwrite, absent keys retained.
	for _, event := range response.AccountData.Events {
		next.AccountData[event.Type] = event.Content
	}

	next.NextBatchToken = response.NextBatch
	return next, nil
}

// MergeHistory folds a history pagination response for one room into
// the client state, returning a new state. Same purity and atomicity
// contract as Merge. Unknown rooms are rejected by returning prev
// unchanged; the caller only paginates rooms it obtained from the
// state, so this is a sequencing bug surfaced gently rather than a
// user-visible error.
func MergeHistory(prev *ClientState, roomID ref.RoomID, response *messaging.RoomMessagesResponse) (*ClientState, error) {
	room, ok := prev.Rooms[roomID]
	if !ok {
		return prev, nil
	}
	updated, err := ApplyHistory(room, response)
	if err != nil {
		return nil, err
	}
	next := prev.clone()
	next.Rooms[roomID] = updated
	return next, nil
}

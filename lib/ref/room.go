// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "strings"

// RoomID is a Matrix room ID (e.g., "!abc123:example.org").
//
// Room IDs are server-assigned opaque identifiers. They arrive via
// /sync responses, room joins, and alias resolution, and are wrapped
// at the boundary without validation. The server authority after the
// ':' is meaningful to Foyer: it is the homeserver grouping key for
// the room list.
//
// RoomID is an immutable value type. The zero value means "no room";
// use IsZero to check.
type RoomID struct {
	id string
}

// NewRoomID wraps a raw Matrix room ID string. Construction never
// fails — the string is stored verbatim.
func NewRoomID(raw string) RoomID {
	return RoomID{id: raw}
}

// String returns the full room ID string (e.g., "!abc123:example.org").
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is the zero value (uninitialized).
func (r RoomID) IsZero() bool { return r.id == "" }

// ServerName returns the homeserver authority after the ':' separator,
// or the zero ServerName if the ID has none. Derived at ingestion and
// used only for grouping rooms in display.
func (r RoomID) ServerName() ServerName {
	if colon := strings.IndexByte(r.id, ':'); colon >= 0 {
		return ServerName{name: r.id[colon+1:]}
	}
	return ServerName{}
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats, including use as a JSON map key.
func (r RoomID) MarshalText() ([]byte, error) {
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails,
// so RoomID works as a map key type for the rooms.join section of a
// sync response without making the decoder reject unusual IDs.
func (r *RoomID) UnmarshalText(data []byte) error {
	r.id = string(data)
	return nil
}

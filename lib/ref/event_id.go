// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventID is a Matrix event ID (e.g., "$abc123xyz").
//
// In room version 4+ event IDs are "$base64hash" with no server
// suffix; older room versions used "$something:server". Foyer treats
// them as fully opaque — their only roles are timeline deduplication
// and read-receipt targeting, both of which need equality and nothing
// else.
//
// EventID is an immutable value type. The zero value means "no event";
// use IsZero to check.
type EventID struct {
	id string
}

// NewEventID wraps a raw Matrix event ID string. Construction never
// fails — the string is stored verbatim.
func NewEventID(raw string) EventID {
	return EventID{id: raw}
}

// String returns the full event ID string (e.g., "$abc123xyz").
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is the zero value (uninitialized).
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (e *EventID) UnmarshalText(data []byte) error {
	e.id = string(data)
	return nil
}

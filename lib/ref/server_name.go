// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// ServerName is a Matrix server name (e.g., "example.org",
// "matrix.example.com:8448").
//
// Server names identify homeservers. They appear after the colon in
// user IDs and room IDs and are derived from those IDs at ingestion.
// Foyer uses them to group the room list by federation authority.
//
// ServerName is an immutable value type. The zero value means
// "unknown server"; use IsZero to check.
type ServerName struct {
	name string
}

// NewServerName wraps a raw Matrix server name string. Construction
// never fails — the string is stored verbatim.
func NewServerName(raw string) ServerName {
	return ServerName{name: raw}
}

// String returns the server name string (e.g., "example.org").
func (s ServerName) String() string { return s.name }

// IsZero reports whether the ServerName is the zero value (uninitialized).
func (s ServerName) IsZero() bool { return s.name == "" }

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (s ServerName) MarshalText() ([]byte, error) {
	return []byte(s.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *ServerName) UnmarshalText(data []byte) error {
	s.name = string(data)
	return nil
}

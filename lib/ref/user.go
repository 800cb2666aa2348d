// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "strings"

// UserID is a Matrix user ID (e.g., "@alice:example.org").
//
// A well-formed user ID starts with '@' and contains a ':' separating
// the localpart from the server name, but UserID does not enforce
// this: IDs arrive from the homeserver and are carried as-is. Use
// Localpart and ServerName for structural access; both degrade
// gracefully on malformed input.
//
// UserID is an immutable value type. The zero value means "no user";
// use IsZero to check.
type UserID struct {
	id string
}

// NewUserID wraps a raw Matrix user ID string. Construction never
// fails — the string is stored verbatim.
func NewUserID(raw string) UserID {
	return UserID{id: raw}
}

// String returns the full user ID string (e.g., "@alice:example.org").
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the portion between the '@' sigil and the ':'
// server separator. For a malformed ID the sigil and suffix are
// stripped on a best-effort basis; the result is never padded with
// protocol syntax.
func (u UserID) Localpart() string {
	local := strings.TrimPrefix(u.id, "@")
	if colon := strings.IndexByte(local, ':'); colon >= 0 {
		local = local[:colon]
	}
	return local
}

// ServerName returns the homeserver authority after the ':' separator,
// or the zero ServerName if the ID has none.
func (u UserID) ServerName() ServerName {
	if colon := strings.IndexByte(u.id, ':'); colon >= 0 {
		return ServerName{name: u.id[colon+1:]}
	}
	return ServerName{}
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails:
// identifier validation is not the decoder's job, and a single odd ID
// in a sync payload must not abort the whole merge.
func (u *UserID) UnmarshalText(data []byte) error {
	u.id = string(data)
	return nil
}

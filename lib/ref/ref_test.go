// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestUserIDStructure(t *testing.T) {
	user := NewUserID("@alice:example.org")
	if user.Localpart() != "alice" {
		t.Errorf("Localpart = %q, want %q", user.Localpart(), "alice")
	}
	if user.ServerName().String() != "example.org" {
		t.Errorf("ServerName = %q, want %q", user.ServerName(), "example.org")
	}
	if user.IsZero() {
		t.Error("non-empty UserID reported IsZero")
	}
}

func TestUserIDMalformed(t *testing.T) {
	// Construction is total; helpers degrade instead of failing.
	t.Run("no server", func(t *testing.T) {
		user := NewUserID("@alice")
		if user.Localpart() != "alice" {
			t.Errorf("Localpart = %q, want %q", user.Localpart(), "alice")
		}
		if !user.ServerName().IsZero() {
			t.Errorf("ServerName = %q, want zero", user.ServerName())
		}
	})
	t.Run("no sigil", func(t *testing.T) {
		user := NewUserID("alice:example.org")
		if user.Localpart() != "alice" {
			t.Errorf("Localpart = %q, want %q", user.Localpart(), "alice")
		}
	})
	t.Run("empty", func(t *testing.T) {
		if !NewUserID("").IsZero() {
			t.Error("empty UserID not IsZero")
		}
	})
}

func TestRoomIDServerName(t *testing.T) {
	room := NewRoomID("!abc123:example.org")
	if room.ServerName().String() != "example.org" {
		t.Errorf("ServerName = %q, want %q", room.ServerName(), "example.org")
	}
	if NewRoomID("!opaque").ServerName().String() != "" {
		t.Error("room ID without authority should yield zero ServerName")
	}
}

func TestRoomIDAsJSONMapKey(t *testing.T) {
	raw := []byte(`{"!a:x.org": 1, "!b:y.org": 2}`)
	var decoded map[RoomID]int
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal map keyed by RoomID: %v", err)
	}
	if decoded[NewRoomID("!a:x.org")] != 1 || decoded[NewRoomID("!b:y.org")] != 2 {
		t.Errorf("unexpected decoded map: %v", decoded)
	}

	encoded, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal map keyed by RoomID: %v", err)
	}
	var roundTrip map[RoomID]int
	if err := json.Unmarshal(encoded, &roundTrip); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}
	if len(roundTrip) != 2 {
		t.Errorf("round-trip lost entries: %v", roundTrip)
	}
}

func TestEventIDEquality(t *testing.T) {
	a := NewEventID("$one")
	b := NewEventID("$one")
	if a != b {
		t.Error("identical event IDs not equal")
	}
	if a == NewEventID("$two") {
		t.Error("distinct event IDs compared equal")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/foyer/lib/ref"
)

func TestDeterministicEncoding(t *testing.T) {
	value := map[string]int{"zebra": 1, "alpha": 2, "mid": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same value produced different encodings")
	}
}

func TestRefTypesRoundTrip(t *testing.T) {
	type record struct {
		Room ref.RoomID `cbor:"room"`
		User ref.UserID `cbor:"user"`
	}
	original := record{
		Room: ref.NewRoomID("!abc:example.org"),
		User: ref.NewUserID("@alice:example.org"),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded record
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Room != original.Room || decoded.User != original.User {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestRoomIDMapKeys(t *testing.T) {
	original := map[ref.RoomID]string{
		ref.NewRoomID("!a:x.org"): "one",
		ref.NewRoomID("!b:y.org"): "two",
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[ref.RoomID]string
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 2 || decoded[ref.NewRoomID("!a:x.org")] != "one" {
		t.Errorf("unexpected decoded map: %v", decoded)
	}
}

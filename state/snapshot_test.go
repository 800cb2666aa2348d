// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"testing"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

func TestSnapshotRoundTrip(t *testing.T) {
	merged := mustMerge(t, NewClientState(selfUser), joinResponse("s9", messaging.JoinedRoom{
		State: messaging.StateSection{Events: []messaging.Event{
			stateEvent("$n", EventTypeName, "", map[string]string{"name": "Team"}),
			memberEvent("$m1", "@a:example.org", "Alice", "join"),
		}},
		Timeline: messaging.TimelineSection{
			Events: []messaging.Event{
				textEvent("$1", "@a:example.org", "hi", 1000),
			},
			PrevBatch: "p1",
		},
		UnreadNotifications: &messaging.UnreadNotificationCounts{NotificationCount: 4},
	}))

	restored, err := RestoreSnapshot(merged.TakeSnapshot())
	if err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}

	if restored.NextBatchToken != "s9" {
		t.Errorf("restored token = %q, want s9", restored.NextBatchToken)
	}
	if restored.SelfUserID != selfUser {
		t.Errorf("restored self = %q", restored.SelfUserID)
	}

	room, ok := restored.Room(testRoom)
	if !ok {
		t.Fatal("room missing after round trip")
	}
	if got := room.Name(selfUser); got != "Team" {
		t.Errorf("restored name = %q, want Team", got)
	}
	if member := room.Members[ref.NewUserID("@a:example.org")]; member.DisplayName != "Alice" {
		t.Errorf("restored member = %+v", member)
	}
	if len(room.Timeline) != 1 {
		t.Fatalf("restored timeline length = %d, want 1", len(room.Timeline))
	}
	if text, ok := room.Timeline[0].Content.(TextContent); !ok || text.Body != "hi" {
		t.Errorf("restored content = %#v", room.Timeline[0].Content)
	}
	if room.Unread.NotificationCount != 4 {
		t.Errorf("restored unread = %+v", room.Unread)
	}
	if room.PrevBatchToken != "p1" {
		t.Errorf("restored prev batch = %q, want p1", room.PrevBatchToken)
	}

	// Typing state is ephemeral and starts empty after restore.
	if len(room.TypingUsers) != 0 {
		t.Errorf("restored typing set = %v, want empty", room.TypingUsers)
	}

	// A restored state accepts further merges.
	next := mustMerge(t, restored, joinResponse("s10", messaging.JoinedRoom{
		Timeline: messaging.TimelineSection{Events: []messaging.Event{
			textEvent("$1", "@a:example.org", "hi", 1000),
			textEvent("$2", "@b:example.org", "yo", 2000),
		}},
	}))
	room, _ = next.Room(testRoom)
	if len(room.Timeline) != 2 {
		t.Errorf("timeline after restored merge = %d, want 2", len(room.Timeline))
	}
}

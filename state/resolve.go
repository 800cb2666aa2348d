// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"github.com/bureau-foundation/foyer/lib/ref"
)

// ResolveDisplayName renders a user ID as a human name. A room-local
// display name from the user's latest membership event wins; otherwise
// the localpart of the user ID, stripped of sigil and server; as a
// last resort the raw ID. Pure and total — it backs every rendered
// sender label, so it never fails. room may be nil.
func ResolveDisplayName(room *RoomState, userID ref.UserID) string {
	if room != nil {
		if member, ok := room.Members[userID]; ok && member.DisplayName != "" {
			return member.DisplayName
		}
	}
	if localpart := userID.Localpart(); localpart != "" {
		return localpart
	}
	return userID.String()
}

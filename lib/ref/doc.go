// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides typed identifiers for the Matrix entities Foyer
// works with: user IDs, room IDs, event IDs, event types, and server
// names.
//
// All identifiers originate on the homeserver and reach the client
// through API responses. Construction is therefore total: the wrapper
// types accept whatever string the server produced and never reject
// input. The types exist for compile-time safety (a RoomID cannot be
// passed where a UserID is expected) and for the structural helpers
// (Localpart, ServerName) that display code relies on. Helpers are
// lenient — a malformed identifier yields an empty or best-effort
// result, never an error, because every rendered label ultimately
// passes through them.
package ref

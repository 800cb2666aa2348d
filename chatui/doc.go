// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is Foyer's terminal interface: a bubbletea model with
// a fuzzy-searchable room list, a scrollable message timeline, and a
// compose input. It renders the immutable state snapshots published by
// client.Syncer and calls back into the Syncer for user actions; it
// never mutates client state itself.
package chatui

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state is Foyer's sync/state-merge core.
//
// It folds incremental sync deltas from the homeserver into a
// consistent, queryable in-memory model of the user's rooms and
// account data. Merge is a pure function from (previous state, sync
// response) to new state: on any decode failure the whole merge is
// discarded and the previous state remains valid. The rendering layer
// treats the resulting ClientState as ground truth and never mutates
// it; all mutation flows through Merge, ApplyHistory, and the outbound
// message Tracker.
//
// The package has no knowledge of HTTP. It consumes the decoded
// payload types from the messaging package and nothing else.
package state

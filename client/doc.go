// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client orchestrates the sync loop around the state core.
//
// Syncer owns the authoritative *state.ClientState and is the only
// writer: the long-poll loop, history pagination, and send
// reconciliation all funnel through one apply goroutine, so merges
// never race and the monotonicity and deduplication guarantees of the
// state package hold. The UI receives immutable snapshots over a
// channel and calls back into Syncer for user actions (send, typing,
// read markers, history).
//
// The package also persists the session between runs: the access token
// sealed with an age passphrase (SessionStore) and a compressed,
// checksummed snapshot of the client state (Cache) so startup renders
// instantly and resumes the stream from the stored token.
package client

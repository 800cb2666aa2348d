// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is Foyer's Matrix client-server wire layer.
//
// It owns request construction and response decoding for the endpoints
// the client uses — login, /sync long-polling, history pagination,
// message sending, typing notifications, read receipts, and account
// data — and nothing else. The state package consumes the decoded
// payload types; it never sees HTTP.
//
// Client is the unauthenticated transport (homeserver URL + HTTP
// client). DirectSession wraps it with an access token held in a
// secret.Buffer. Server-side errors decode into *MatrixError, which
// callers extract with errors.As.
package messaging

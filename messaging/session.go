// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"io"

	"github.com/bureau-foundation/foyer/lib/ref"
)

// Session is the interface the sync engine and the UI program against.
// *DirectSession is the production implementation; tests substitute
// fakes backed by httptest or canned payloads.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID of the
	// logged-in account (e.g., "@alice:example.org").
	UserID() ref.UserID

	// Close releases any resources held by the session. Idempotent.
	Close() error

	// CloseIdleConnections drops pooled idle HTTP connections. The
	// sync loop calls this after a transport error so the retry opens
	// a fresh socket instead of reusing a poisoned one.
	CloseIdleConnections()

	// WhoAmI validates the access token and returns the user ID.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// Logout invalidates the session's access token on the server.
	Logout(ctx context.Context) error

	// Sync performs an incremental sync with the homeserver. Leave
	// options.Since empty for the initial sync; set options.Timeout
	// for long-polling.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// RoomMessages fetches paginated history from a room.
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// SendMessage sends an m.room.message event. transactionID is the
	// client-assigned idempotency key from the outbound tracker;
	// repeating a PUT with the same ID returns the same event ID
	// instead of a duplicate message.
	SendMessage(ctx context.Context, roomID ref.RoomID, transactionID string, content MessageContent) (ref.EventID, error)

	// SendTyping starts or stops the typing notification for this
	// user in a room.
	SendTyping(ctx context.Context, roomID ref.RoomID, typing bool, timeoutMs int64) error

	// SendReadReceipt marks an event as read.
	SendReadReceipt(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error

	// GetAccountData fetches a global account data value by type.
	// Returns a *MatrixError with code M_NOT_FOUND if unset.
	GetAccountData(ctx context.Context, eventType ref.EventType) (json.RawMessage, error)

	// SetAccountData stores a global account data value by type.
	SetAccountData(ctx context.Context, eventType ref.EventType, content any) error

	// JoinRoom joins a room by room ID.
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)

	// LeaveRoom leaves a room by room ID.
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error

	// JoinedRooms returns the list of room IDs the user has joined.
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)

	// GetRoomMembers returns the members of a room.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// GetDisplayName fetches a user's profile display name. An empty
	// string (not an error) means none is set.
	GetDisplayName(ctx context.Context, userID ref.UserID) (string, error)

	// UploadMedia uploads content to the homeserver's media
	// repository and returns the MXC URI.
	UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error)
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)

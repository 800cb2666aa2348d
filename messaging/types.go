// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/bureau-foundation/foyer/lib/ref"
)

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// MessageContent is the content body of an m.room.message event.
type MessageContent struct {
	MsgType       string     `json:"msgtype"`
	Body          string     `json:"body"`
	Format        string     `json:"format,omitempty"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	URL           string     `json:"url,omitempty"`
	Info          *MediaInfo `json:"info,omitempty"`
}

// MediaInfo describes an uploaded media attachment.
type MediaInfo struct {
	MimeType   string `json:"mimetype,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Width      int    `json:"w,omitempty"`
	Height     int    `json:"h,omitempty"`
	DurationMs int64  `json:"duration,omitempty"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// NewFormattedTextMessage creates a text message with an HTML rendering
// alongside the plain-text fallback body.
func NewFormattedTextMessage(body, formattedBody string) MessageContent {
	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: formattedBody,
	}
}

// NewImageMessage creates an image message referencing uploaded media
// by its MXC URI.
func NewImageMessage(body, mxcURI string, info *MediaInfo) MessageContent {
	return MessageContent{MsgType: "m.image", Body: body, URL: mxcURI, Info: info}
}

// Event represents a Matrix event from the server. Content stays raw:
// the state package decodes it into its typed content union, and a
// decode failure there must not be able to half-apply a sync response.
type Event struct {
	EventID        ref.EventID     `json:"event_id"`
	Type           ref.EventType   `json:"type"`
	Sender         ref.UserID      `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	StateKey       *string         `json:"state_key,omitempty"`
	Unsigned       *EventUnsigned  `json:"unsigned,omitempty"`
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (distinguishes "not set" from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch   string             `json:"next_batch"`
	Rooms       RoomsSection       `json:"rooms"`
	AccountData AccountDataSection `json:"account_data"`
}

// RoomsSection contains per-room sync data grouped by membership
// state. Map keys decode through ref.RoomID's TextUnmarshaler.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	State       StateSection       `json:"state"`
	Timeline    TimelineSection    `json:"timeline"`
	Ephemeral   EphemeralSection   `json:"ephemeral"`
	AccountData AccountDataSection `json:"account_data"`

	// UnreadNotifications is a pointer so that its absence in a
	// response (counters retained) is distinguishable from an explicit
	// zero (counters cleared).
	UnreadNotifications *UnreadNotificationCounts `json:"unread_notifications,omitempty"`
}

// InvitedRoom contains sync data for a room the user was invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	State    StateSection    `json:"state"`
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// EphemeralSection contains ephemeral events (typing, read receipts)
// from a sync response.
type EphemeralSection struct {
	Events []Event `json:"events"`
}

// AccountDataSection contains account data events, at global or
// per-room scope.
type AccountDataSection struct {
	Events []Event `json:"events"`
}

// UnreadNotificationCounts carries a room's unread counters.
type UnreadNotificationCounts struct {
	NotificationCount int `json:"notification_count"`
	HighlightCount    int `json:"highlight_count"`
}

// RoomMessagesOptions controls pagination for room history fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from now"
	Direction string // "b" (backward/older) or "f" (forward/newer)
	Limit     int    // max events to return; 0 uses server default
}

// RoomMessagesResponse is returned by RoomMessages. Chunk is ordered
// in the direction of traversal: newest-first for backward pagination.
// An empty End means there is no further history in that direction.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end,omitempty"`
	Chunk []Event `json:"chunk"`
}

// SendEventResponse is returned by SendMessage.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// TypingRequest is the request body for typing notifications.
type TypingRequest struct {
	Typing  bool  `json:"typing"`
	Timeout int64 `json:"timeout,omitempty"` // milliseconds; only meaningful when Typing is true
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}

// RoomMember represents a member of a Matrix room.
type RoomMember struct {
	UserID      ref.UserID `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Membership  string     `json:"membership"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// RoomMembersResponse is returned by the /members endpoint.
type RoomMembersResponse struct {
	Chunk []Event `json:"chunk"`
}

// RoomMemberContent is the content of an m.room.member state event.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DisplayNameResponse is returned by the /profile displayname endpoint.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}

// UploadResponse is returned by UploadMedia.
type UploadResponse struct {
	ContentURI string `json:"content_uri"`
}

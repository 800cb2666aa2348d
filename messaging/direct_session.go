// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/secret"
)

// DirectSession is an authenticated Matrix session. It wraps a Client
// with an access token for making authenticated API calls.
//
// The access token is stored in a secret.Buffer (mmap-backed, locked
// against swap, excluded from core dumps). The caller must call Close
// when the DirectSession is no longer needed.
//
// DirectSession does not assign transaction IDs: the outbound tracker
// in the state package owns that numbering so that sends survive
// reconnects with the same idempotency key.
type DirectSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string
}

// UserID returns the fully-qualified Matrix user ID (e.g., "@alice:example.org").
func (s *DirectSession) UserID() ref.UserID {
	return s.userID
}

// DeviceID returns the device ID for this session. Empty when the
// session was restored from a bare token.
func (s *DirectSession) DeviceID() string {
	return s.deviceID
}

// AccessToken returns the access token as a heap string. This creates a
// brief copy from the mmap-backed buffer — use only at boundaries that
// require a string (e.g., persisting the session file).
func (s *DirectSession) AccessToken() string {
	return s.accessToken.String()
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a sync error to force
// the next request to establish a fresh TCP connection.
func (s *DirectSession) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// Close releases the access token memory (zeros, unlocks, unmaps).
// Idempotent — safe to call multiple times.
func (s *DirectSession) Close() error {
	if s.accessToken != nil {
		return s.accessToken.Close()
	}
	return nil
}

// WhoAmI validates the access token and returns the user ID. Useful
// for checking whether a stored token is still valid.
func (s *DirectSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// Logout invalidates the access token on the server. The local token
// buffer stays allocated until Close.
func (s *DirectSession) Logout(ctx context.Context) error {
	_, err := s.client.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/logout", s.accessToken, struct{}{})
	if err != nil {
		return fmt.Errorf("messaging: logout failed: %w", err)
	}
	return nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// RoomMessages fetches messages from a room with pagination.
func (s *DirectSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/messages", url.PathEscape(roomID.String()))

	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b" // backward (newest first) by default
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: room messages for %q failed: %w", roomID, err)
	}

	var response RoomMessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse messages response: %w", err)
	}
	return &response, nil
}

// SendMessage sends an m.room.message event using Matrix's idempotent
// PUT. The transaction ID comes from the caller: retrying the same ID
// after a network failure returns the original event ID instead of
// duplicating the message. Returns the event ID.
func (s *DirectSession) SendMessage(ctx context.Context, roomID ref.RoomID, transactionID string, content MessageContent) (ref.EventID, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(transactionID),
	)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: send message to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// SendTyping starts or stops this user's typing notification in a
// room. timeoutMs is how long the server keeps the indicator alive
// when typing is true; it is ignored when typing is false.
func (s *DirectSession) SendTyping(ctx context.Context, roomID ref.RoomID, typing bool, timeoutMs int64) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/typing/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(s.userID.String()),
	)

	request := TypingRequest{Typing: typing}
	if typing {
		request.Timeout = timeoutMs
	}
	if _, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, request); err != nil {
		return fmt.Errorf("messaging: typing notification for %q failed: %w", roomID, err)
	}
	return nil
}

// SendReadReceipt marks an event as read.
func (s *DirectSession) SendReadReceipt(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/receipt/m.read/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(eventID.String()),
	)

	if _, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}); err != nil {
		return fmt.Errorf("messaging: read receipt for %q in %q failed: %w", eventID, roomID, err)
	}
	return nil
}

// GetAccountData fetches a global account data value (e.g., "m.direct").
// Returns a *MatrixError with code M_NOT_FOUND when the value was
// never set.
func (s *DirectSession) GetAccountData(ctx context.Context, eventType ref.EventType) (json.RawMessage, error) {
	path := fmt.Sprintf("/_matrix/client/v3/user/%s/account_data/%s",
		url.PathEscape(s.userID.String()),
		url.PathEscape(eventType.String()),
	)

	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get account data %s failed: %w", eventType, err)
	}
	return json.RawMessage(body), nil
}

// SetAccountData stores a global account data value.
func (s *DirectSession) SetAccountData(ctx context.Context, eventType ref.EventType, content any) error {
	path := fmt.Sprintf("/_matrix/client/v3/user/%s/account_data/%s",
		url.PathEscape(s.userID.String()),
		url.PathEscape(eventType.String()),
	)

	if _, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content); err != nil {
		return fmt.Errorf("messaging: set account data %s failed: %w", eventType, err)
	}
	return nil
}

// JoinRoom joins a room by ID. Returns the room ID.
func (s *DirectSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	path := "/_matrix/client/v3/join/" + url.PathEscape(roomID.String())
	body, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{})
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: join room %s failed: %w", roomID, err)
	}

	var response struct {
		RoomID ref.RoomID `json:"room_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: failed to parse join response: %w", err)
	}
	return response.RoomID, nil
}

// LeaveRoom leaves a room.
func (s *DirectSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/leave", url.PathEscape(roomID.String()))
	if _, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}); err != nil {
		return fmt.Errorf("messaging: leave room %s failed: %w", roomID, err)
	}
	return nil
}

// JoinedRooms returns the list of rooms the user has joined.
func (s *DirectSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/joined_rooms", s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: joined rooms failed: %w", err)
	}

	var response JoinedRoomsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse joined rooms response: %w", err)
	}
	return response.JoinedRooms, nil
}

// GetRoomMembers returns the members of a room, flattened from the
// m.room.member state events the endpoint returns.
func (s *DirectSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/members", url.PathEscape(roomID.String()))
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: room members for %q failed: %w", roomID, err)
	}

	var response RoomMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse members response: %w", err)
	}

	members := make([]RoomMember, 0, len(response.Chunk))
	for _, event := range response.Chunk {
		if event.StateKey == nil {
			continue
		}
		var content RoomMemberContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			continue
		}
		members = append(members, RoomMember{
			UserID:      ref.NewUserID(*event.StateKey),
			DisplayName: content.DisplayName,
			Membership:  content.Membership,
			AvatarURL:   content.AvatarURL,
		})
	}
	return members, nil
}

// GetDisplayName fetches a user's profile display name. Returns an
// empty string (not an error) when the user has none set.
func (s *DirectSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	path := "/_matrix/client/v3/profile/" + url.PathEscape(userID.String()) + "/displayname"
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		if IsMatrixError(err, ErrCodeNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("messaging: display name for %q failed: %w", userID, err)
	}

	var response DisplayNameResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse display name response: %w", err)
	}
	return response.DisplayName, nil
}

// UploadMedia uploads content to the homeserver's media repository.
// Returns the MXC URI (e.g., "mxc://example.org/abc123").
func (s *DirectSession) UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error) {
	responseBody, err := s.client.doRequestRaw(ctx, http.MethodPost,
		"/_matrix/media/v3/upload", s.accessToken, contentType, body)
	if err != nil {
		return "", fmt.Errorf("messaging: media upload failed: %w", err)
	}

	var response UploadResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

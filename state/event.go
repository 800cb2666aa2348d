// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

// Event types the merge engine interprets. Everything else is carried
// opaquely as UnknownContent.
const (
	EventTypeMessage        ref.EventType = "m.room.message"
	EventTypeMember         ref.EventType = "m.room.member"
	EventTypeName           ref.EventType = "m.room.name"
	EventTypeCanonicalAlias ref.EventType = "m.room.canonical_alias"
	EventTypeTyping         ref.EventType = "m.typing"
	EventTypeDirect         ref.EventType = "m.direct"
)

// TimelineEvent is an event stored in a room's timeline. Immutable
// once created; the timeline is append-only at the tail (live sync)
// and prepend-only at the head (history pagination).
type TimelineEvent struct {
	EventID   ref.EventID
	Type      ref.EventType
	Sender    ref.UserID
	Timestamp int64 // origin server timestamp, milliseconds
	Content   Content

	// Raw is the verbatim wire content. It survives so a timeline can
	// be snapshotted to disk and re-decoded on load.
	Raw json.RawMessage
}

// Content is the decoded payload of a timeline event, a tagged union.
// The renderer switches exhaustively over the concrete types;
// UnknownContent is the forward-compatibility arm for event and
// message types this client does not interpret.
type Content interface {
	isContent()
}

// TextContent is an m.text message.
type TextContent struct {
	Body          string
	Format        string
	FormattedBody string
}

// NoticeContent is an m.notice message (automated, rendered muted).
type NoticeContent struct {
	Body          string
	Format        string
	FormattedBody string
}

// EmoteContent is an m.emote message (rendered as "* sender action").
type EmoteContent struct {
	Body string
}

// ImageContent is an m.image message referencing uploaded media.
type ImageContent struct {
	Body string
	URL  string
	Info *messaging.MediaInfo
}

// FileContent is an m.file message.
type FileContent struct {
	Body string
	URL  string
	Info *messaging.MediaInfo
}

// VideoContent is an m.video message.
type VideoContent struct {
	Body string
	URL  string
	Info *messaging.MediaInfo
}

// MemberContent is an m.room.member state event: a membership change
// for the user named by the event's state key.
type MemberContent struct {
	Membership  Membership
	DisplayName string
	AvatarURL   string
}

// NameContent is an m.room.name state event.
type NameContent struct {
	Name string
}

// AliasContent is an m.room.canonical_alias state event.
type AliasContent struct {
	Alias string
}

// UnknownContent preserves an event this client does not interpret.
// Raw is the verbatim content JSON; MsgType is set when the event was
// an m.room.message with an unrecognized msgtype.
type UnknownContent struct {
	Type    ref.EventType
	MsgType string
	Raw     json.RawMessage
}

func (TextContent) isContent()    {}
func (NoticeContent) isContent()  {}
func (EmoteContent) isContent()   {}
func (ImageContent) isContent()   {}
func (FileContent) isContent()    {}
func (VideoContent) isContent()   {}
func (MemberContent) isContent()  {}
func (NameContent) isContent()    {}
func (AliasContent) isContent()   {}
func (UnknownContent) isContent() {}

// Membership is a user's membership status in a room.
type Membership string

const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
)

// DecodeError reports a malformed event payload. It aborts the
// enclosing merge atomically: no part of the sync response is applied
// and the previous client state stays valid.
type DecodeError struct {
	RoomID  ref.RoomID
	EventID ref.EventID
	Type    ref.EventType
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("state: decoding %s event %s in room %s: %v", e.Type, e.EventID, e.RoomID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeTimelineEvent converts a wire event into a TimelineEvent,
// decoding its content into the tagged union.
func decodeTimelineEvent(roomID ref.RoomID, event messaging.Event) (TimelineEvent, error) {
	content, err := decodeContent(roomID, event)
	if err != nil {
		return TimelineEvent{}, err
	}
	return TimelineEvent{
		EventID:   event.EventID,
		Type:      event.Type,
		Sender:    event.Sender,
		Timestamp: event.OriginServerTS,
		Content:   content,
		Raw:       event.Content,
	}, nil
}

// DecodeContent decodes a wire event's content into the tagged union.
// Exposed for collaborators that interpret wire events outside a merge,
// such as send reconciliation against incoming sync deltas.
func DecodeContent(roomID ref.RoomID, event messaging.Event) (Content, error) {
	return decodeContent(roomID, event)
}

// decodeContent decodes an event's content payload. Unrecognized event
// types and message types decode to UnknownContent, never an error;
// malformed JSON for a type we do interpret is a *DecodeError.
func decodeContent(roomID ref.RoomID, event messaging.Event) (Content, error) {
	fail := func(err error) (Content, error) {
		return nil, &DecodeError{RoomID: roomID, EventID: event.EventID, Type: event.Type, Err: err}
	}

	switch event.Type {
	case EventTypeMessage:
		var message messaging.MessageContent
		if err := json.Unmarshal(event.Content, &message); err != nil {
			return fail(err)
		}
		switch message.MsgType {
		case "m.text":
			return TextContent{Body: message.Body, Format: message.Format, FormattedBody: message.FormattedBody}, nil
		case "m.notice":
			return NoticeContent{Body: message.Body, Format: message.Format, FormattedBody: message.FormattedBody}, nil
		case "m.emote":
			return EmoteContent{Body: message.Body}, nil
		case "m.image":
			return ImageContent{Body: message.Body, URL: message.URL, Info: message.Info}, nil
		case "m.file":
			return FileContent{Body: message.Body, URL: message.URL, Info: message.Info}, nil
		case "m.video":
			return VideoContent{Body: message.Body, URL: message.URL, Info: message.Info}, nil
		default:
			return UnknownContent{Type: event.Type, MsgType: message.MsgType, Raw: event.Content}, nil
		}

	case EventTypeMember:
		var member messaging.RoomMemberContent
		if err := json.Unmarshal(event.Content, &member); err != nil {
			return fail(err)
		}
		return MemberContent{
			Membership:  Membership(member.Membership),
			DisplayName: member.DisplayName,
			AvatarURL:   member.AvatarURL,
		}, nil

	case EventTypeName:
		var name struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(event.Content, &name); err != nil {
			return fail(err)
		}
		return NameContent{Name: name.Name}, nil

	case EventTypeCanonicalAlias:
		var alias struct {
			Alias string `json:"alias"`
		}
		if err := json.Unmarshal(event.Content, &alias); err != nil {
			return fail(err)
		}
		return AliasContent{Alias: alias.Alias}, nil

	default:
		return UnknownContent{Type: event.Type, Raw: event.Content}, nil
	}
}

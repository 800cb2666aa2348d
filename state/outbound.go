// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
)

// PendingMessage is a locally-sent message awaiting confirmation from
// the server. The UI renders it after the room's confirmed timeline in
// a distinct "sending" style.
type PendingMessage struct {
	TransactionID int64
	RoomID        ref.RoomID
	Content       messaging.MessageContent
	QueuedAt      time.Time
}

// SendFailure is a failed outbound message. It is no longer pending —
// the user must resend explicitly — but stays visible until dismissed.
type SendFailure struct {
	TransactionID int64
	RoomID        ref.RoomID
	Content       messaging.MessageContent
	Err           error
}

// Tracker correlates locally-sent messages with their eventual
// confirmation. Transaction IDs are process-lifetime unique and
// strictly increasing from 0; they double as the idempotency key on
// the send request's PUT path.
//
// Safe for concurrent use: sends run on their own goroutines while the
// sync loop resolves confirmations.
type Tracker struct {
	mu       sync.Mutex
	nextID   int64
	pending  map[int64]PendingMessage
	failures []SendFailure
}

// NewTracker creates an empty tracker. One per login session.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[int64]PendingMessage)}
}

// AllocateTransactionID returns the next transaction ID: 0, 1, 2, …
// IDs are never reused within a session.
func (t *Tracker) AllocateTransactionID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return id
}

// RecordPending registers a message as in flight.
func (t *Tracker) RecordPending(transactionID int64, roomID ref.RoomID, content messaging.MessageContent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[transactionID] = PendingMessage{
		TransactionID: transactionID,
		RoomID:        roomID,
		Content:       content,
		QueuedAt:      time.Now(),
	}
}

// ResolveFailed moves a pending message to the failure list. Failed
// sends are not retried automatically; the user resends, which
// allocates a fresh transaction ID.
func (t *Tracker) ResolveFailed(transactionID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.pending[transactionID]
	if !ok {
		return
	}
	delete(t.pending, transactionID)
	t.failures = append(t.failures, SendFailure{
		TransactionID: entry.TransactionID,
		RoomID:        entry.RoomID,
		Content:       entry.Content,
		Err:           err,
	})
}

// DismissFailure removes a surfaced failure.
func (t *Tracker) DismissFailure(transactionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = slices.DeleteFunc(t.failures, func(f SendFailure) bool {
		return f.TransactionID == transactionID
	})
}

// MatchConfirmed reconciles an incoming timeline event against the
// pending set: when a self-sent event's content equals a pending
// message's body in the same room, that entry is confirmed and
// removed. Matching is by content equality because the server does not
// echo the transaction ID into the sync timeline. Known limitation:
// two pending messages with identical bodies in the same room match
// the oldest entry first, so a confirmation can clear the wrong one.
// Returns the matched transaction ID and true, or false when the event
// confirms nothing.
func (t *Tracker) MatchConfirmed(roomID ref.RoomID, sender ref.UserID, selfUserID ref.UserID, content Content) (int64, bool) {
	if sender != selfUserID {
		return 0, false
	}
	body, ok := contentBody(content)
	if !ok {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	matched := int64(-1)
	for id, entry := range t.pending {
		if entry.RoomID != roomID || entry.Content.Body != body {
			continue
		}
		if matched == -1 || id < matched {
			matched = id
		}
	}
	if matched == -1 {
		return 0, false
	}
	delete(t.pending, matched)
	return matched, true
}

// Pending returns the in-flight messages for a room, oldest first.
func (t *Tracker) Pending(roomID ref.RoomID) []PendingMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var entries []PendingMessage
	for _, entry := range t.pending {
		if entry.RoomID == roomID {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b PendingMessage) int {
		return cmp.Compare(a.TransactionID, b.TransactionID)
	})
	return entries
}

// Failures returns a snapshot of the undismissed send failures.
func (t *Tracker) Failures() []SendFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.failures)
}

// contentBody extracts the plain-text body used for send
// reconciliation. Only message content the client itself can send
// participates.
func contentBody(content Content) (string, bool) {
	switch typed := content.(type) {
	case TextContent:
		return typed.Body, true
	case NoticeContent:
		return typed.Body, true
	case EmoteContent:
		return typed.Body, true
	case ImageContent:
		return typed.Body, true
	case FileContent:
		return typed.Body, true
	case VideoContent:
		return typed.Body, true
	default:
		return "", false
	}
}

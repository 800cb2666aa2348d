// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/messaging"
	"github.com/bureau-foundation/foyer/state"
)

// longPollTimeout is the default server-side long-poll hold time in
// milliseconds, used when Config.SyncTimeout is unset. The server
// returns immediately when new events arrive. 30 seconds matches the
// Matrix client-server spec recommendation.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// /sync error. Short so the retry completes quickly; the HTTP
// round-trip itself provides backoff between attempts.
const retryTimeout = 1000

// typingTimeout is how long the server keeps a typing indicator alive
// without a refresh, in milliseconds.
const typingTimeout = 20000

// Snapshot is what the UI renders: an immutable state generation plus
// connectivity and the latest surfaced error. Err is dismissible — it
// never stops the loop.
type Snapshot struct {
	State     *state.ClientState
	Connected bool
	Err       error
}

// Config configures a Syncer.
type Config struct {
	Session messaging.Session

	// Initial is the starting state, usually restored from the disk
	// cache. Nil starts from an empty state and a full initial sync.
	Initial *state.ClientState

	// SyncTimeout is the server-side long-poll hold time. Zero uses
	// the default of 30 seconds.
	SyncTimeout time.Duration

	// HistoryPageSize is the event count per backward pagination
	// request. Zero uses the server default.
	HistoryPageSize int

	// Cache, when set, receives a state snapshot after every merge.
	Cache *Cache

	Logger *slog.Logger
}

// Syncer runs the long-poll loop and serializes every state mutation
// through a single apply goroutine. One /sync request is outstanding
// at a time; the next is issued only after the previous response has
// been fully merged and published, which is the backpressure that
// keeps state mutation bounded.
type Syncer struct {
	session     messaging.Session
	logger      *slog.Logger
	tracker     *state.Tracker
	cache       *Cache
	pageSize    int
	pollTimeout int // milliseconds
	ops         chan func()
	snapshots   chan Snapshot

	// Owned by the apply goroutine; everything else reads it through
	// published snapshots.
	current   *state.ClientState
	connected bool
}

// NewSyncer creates a Syncer. Call Run to start it.
func NewSyncer(config Config) (*Syncer, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("client: Session is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	current := config.Initial
	if current == nil {
		current = state.NewClientState(config.Session.UserID())
	}
	pollTimeout := longPollTimeout
	if config.SyncTimeout > 0 {
		pollTimeout = int(config.SyncTimeout / time.Millisecond)
	}
	return &Syncer{
		session:     config.Session,
		logger:      logger,
		tracker:     state.NewTracker(),
		cache:       config.Cache,
		pageSize:    config.HistoryPageSize,
		pollTimeout: pollTimeout,
		ops:         make(chan func()),
		snapshots:   make(chan Snapshot, 1),
		current:     current,
	}, nil
}

// Snapshots returns the channel of published state generations. The
// channel holds the latest snapshot only: a slow consumer sees the
// newest state, not a backlog.
func (s *Syncer) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Tracker exposes the outbound message tracker for rendering pending
// sends and failures. Safe for concurrent use.
func (s *Syncer) Tracker() *state.Tracker {
	return s.tracker
}

// Run drives the apply loop and the long-poll loop until ctx is
// cancelled. It always returns ctx.Err().
func (s *Syncer) Run(ctx context.Context) error {
	s.publish(nil)

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		s.syncLoop(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-syncDone
			s.saveCache()
			return ctx.Err()
		case op := <-s.ops:
			op()
		}
	}
}

// do runs fn on the apply goroutine and waits for it. Returns false if
// ctx was cancelled first.
func (s *Syncer) do(ctx context.Context, fn func()) bool {
	done := make(chan struct{})
	select {
	case s.ops <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return false
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// syncLoop issues one /sync at a time, forever. Transport errors flip
// the connectivity flag and retry with a short server-side timeout;
// the sync token never moves on failure, so the retry resumes from the
// last merged position.
func (s *Syncer) syncLoop(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		var since string
		s.do(ctx, func() { since = s.current.NextBatchToken })

		syncTimeout := s.pollTimeout
		if failures > 0 {
			syncTimeout = retryTimeout
		}
		response, err := s.session.Sync(ctx, messaging.SyncOptions{
			Since:      since,
			SetTimeout: true,
			Timeout:    syncTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			// TCP-level errors often mean a poisoned connection in
			// Go's HTTP pool; drop idle connections so the next
			// attempt opens a fresh socket.
			s.session.CloseIdleConnections()
			s.logger.Warn("sync failed, retrying",
				"attempt", failures,
				"error", err,
			)
			s.do(ctx, func() {
				s.connected = false
				s.publish(nil)
			})
			continue
		}
		failures = 0

		s.do(ctx, func() { s.applySync(response) })
	}
}

// applySync merges a sync response into the current state, reconciles
// pending sends against it, and publishes the new generation. Runs on
// the apply goroutine. A decode error discards the response, keeps the
// token where it was, and surfaces the error on the snapshot.
func (s *Syncer) applySync(response *messaging.SyncResponse) {
	next, err := state.Merge(s.current, response)
	if err != nil {
		s.logger.Error("discarding malformed sync response", "error", err)
		s.connected = true
		s.publish(err)
		return
	}

	s.reconcileSends(response)
	s.current = next
	s.connected = true
	s.publish(nil)
	s.saveCache()
}

// reconcileSends retires pending sends confirmed by the response's
// timeline events.
func (s *Syncer) reconcileSends(response *messaging.SyncResponse) {
	selfUserID := s.current.SelfUserID
	for roomID, delta := range response.Rooms.Join {
		for _, event := range delta.Timeline.Events {
			if event.Sender != selfUserID || event.Type != state.EventTypeMessage {
				continue
			}
			content, err := state.DecodeContent(roomID, event)
			if err != nil {
				continue
			}
			if id, ok := s.tracker.MatchConfirmed(roomID, event.Sender, selfUserID, content); ok {
				s.logger.Debug("send confirmed via sync",
					"room_id", roomID,
					"transaction_id", id,
					"event_id", event.EventID,
				)
			}
		}
	}
}

// publish replaces the buffered snapshot with the current generation.
// Runs on the apply goroutine.
func (s *Syncer) publish(err error) {
	snapshot := Snapshot{State: s.current, Connected: s.connected, Err: err}
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snapshot
}

// saveCache writes the current state to the disk cache, if configured.
func (s *Syncer) saveCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(s.current); err != nil {
		s.logger.Warn("state cache write failed", "error", err)
	}
}

// LoadHistory pages one batch backward into a room's history and
// merges it through the apply queue. Safe to call while a sync
// long-poll is outstanding. Returns false when the room's history is
// already exhausted.
func (s *Syncer) LoadHistory(ctx context.Context, roomID ref.RoomID) (bool, error) {
	var from string
	var exhausted, known bool
	s.do(ctx, func() {
		room, ok := s.current.Room(roomID)
		if !ok {
			return
		}
		known = true
		from = room.PrevBatchToken
		exhausted = room.HistoryExhausted
	})
	if !known || exhausted || from == "" {
		return false, nil
	}

	response, err := s.session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		From:  from,
		Limit: s.pageSize,
	})
	if err != nil {
		return false, fmt.Errorf("client: loading history for %s: %w", roomID, err)
	}

	var mergeErr error
	s.do(ctx, func() {
		next, err := state.MergeHistory(s.current, roomID, response)
		if err != nil {
			mergeErr = err
			s.publish(err)
			return
		}
		s.current = next
		s.publish(nil)
	})
	return mergeErr == nil, mergeErr
}

// SendText sends a plain text message. It registers the message as
// pending, returns immediately, and completes in the background: a
// failure lands in the tracker's failure list, and success is retired
// when the event echoes back through sync.
func (s *Syncer) SendText(ctx context.Context, roomID ref.RoomID, body string) {
	s.sendMessage(ctx, roomID, messaging.NewTextMessage(body))
}

// SendMessage sends arbitrary message content with the same pending
// lifecycle as SendText.
func (s *Syncer) SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) {
	s.sendMessage(ctx, roomID, content)
}

func (s *Syncer) sendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) {
	transactionID := s.tracker.AllocateTransactionID()
	s.tracker.RecordPending(transactionID, roomID, content)
	s.do(ctx, func() { s.publish(nil) })

	go func() {
		_, err := s.session.SendMessage(ctx, roomID,
			transactionIDString(transactionID), content)
		if err != nil {
			s.logger.Warn("send failed",
				"room_id", roomID,
				"transaction_id", transactionID,
				"error", err,
			)
			s.tracker.ResolveFailed(transactionID, err)
		}
		s.do(ctx, func() { s.publish(nil) })
	}()
}

// SetTyping starts or stops the typing indicator. Errors are logged,
// not surfaced: a lost typing notification is invisible to the user.
func (s *Syncer) SetTyping(ctx context.Context, roomID ref.RoomID, typing bool) {
	go func() {
		if err := s.session.SendTyping(ctx, roomID, typing, typingTimeout); err != nil {
			s.logger.Debug("typing notification failed", "room_id", roomID, "error", err)
		}
	}()
}

// MarkRead sends a read receipt for the newest event in a room.
func (s *Syncer) MarkRead(ctx context.Context, roomID ref.RoomID) {
	var eventID ref.EventID
	s.do(ctx, func() {
		if room, ok := s.current.Room(roomID); ok {
			if last, ok := room.LastEvent(); ok {
				eventID = last.EventID
			}
		}
	})
	if eventID.IsZero() {
		return
	}
	go func() {
		if err := s.session.SendReadReceipt(ctx, roomID, eventID); err != nil {
			s.logger.Debug("read receipt failed", "room_id", roomID, "error", err)
		}
	}()
}

// transactionIDString renders a transaction ID for the send PUT path.
// The process epoch prefix keeps a restarted process from colliding
// with IDs an earlier run already used on the same session.
func transactionIDString(id int64) string {
	return fmt.Sprintf("foyer-%d-%d", processEpoch, id)
}

var processEpoch = time.Now().UnixMilli()

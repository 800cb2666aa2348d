// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/testutil"
	"github.com/bureau-foundation/foyer/messaging"
	"github.com/bureau-foundation/foyer/state"
)

var testRoom = ref.NewRoomID("!abc:example.org")

// fakeSession scripts the messaging.Session surface for syncer tests.
// Sync pops queued steps; once the script is exhausted it blocks until
// the context is cancelled, which is how a test pins the state after
// the interesting responses have been applied.
type fakeSession struct {
	mu        sync.Mutex
	script    []syncStep
	syncCalls []messaging.SyncOptions
	idleDrops int

	messagesFn func(roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error)
	sendFn     func(roomID ref.RoomID, transactionID string, content messaging.MessageContent) (ref.EventID, error)
}

type syncStep struct {
	response *messaging.SyncResponse
	err      error
}

func (f *fakeSession) UserID() ref.UserID { return ref.NewUserID("@self:example.org") }
func (f *fakeSession) Close() error       { return nil }

func (f *fakeSession) CloseIdleConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idleDrops++
}

func (f *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	f.mu.Lock()
	f.syncCalls = append(f.syncCalls, options)
	f.mu.Unlock()

	// Long-poll emulation: wait for a scripted step or cancellation.
	for {
		f.mu.Lock()
		if len(f.script) > 0 {
			step := f.script[0]
			f.script = f.script[1:]
			f.mu.Unlock()
			return step.response, step.err
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	if f.messagesFn == nil {
		return &messaging.RoomMessagesResponse{}, nil
	}
	return f.messagesFn(roomID, options)
}

func (f *fakeSession) SendMessage(ctx context.Context, roomID ref.RoomID, transactionID string, content messaging.MessageContent) (ref.EventID, error) {
	if f.sendFn == nil {
		return ref.NewEventID("$sent"), nil
	}
	return f.sendFn(roomID, transactionID, content)
}

func (f *fakeSession) SendTyping(ctx context.Context, roomID ref.RoomID, typing bool, timeoutMs int64) error {
	return nil
}

func (f *fakeSession) SendReadReceipt(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error {
	return nil
}

func (f *fakeSession) GetAccountData(ctx context.Context, eventType ref.EventType) (json.RawMessage, error) {
	return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}
}

func (f *fakeSession) SetAccountData(ctx context.Context, eventType ref.EventType, content any) error {
	return nil
}

func (f *fakeSession) WhoAmI(ctx context.Context) (ref.UserID, error) { return f.UserID(), nil }
func (f *fakeSession) Logout(ctx context.Context) error               { return nil }

func (f *fakeSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	return roomID, nil
}

func (f *fakeSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error { return nil }

func (f *fakeSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) { return nil, nil }

func (f *fakeSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	return nil, nil
}

func (f *fakeSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	return "", nil
}

func (f *fakeSession) UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error) {
	return "mxc://example.org/fake", nil
}

var _ messaging.Session = (*fakeSession)(nil)

func (f *fakeSession) calls() []messaging.SyncOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messaging.SyncOptions(nil), f.syncCalls...)
}

func textEvent(id, sender, body string, ts int64) messaging.Event {
	content, _ := json.Marshal(map[string]string{"msgtype": "m.text", "body": body})
	return messaging.Event{
		EventID:        ref.NewEventID(id),
		Type:           ref.EventType("m.room.message"),
		Sender:         ref.NewUserID(sender),
		OriginServerTS: ts,
		Content:        content,
	}
}

func joinResponse(nextBatch string, delta messaging.JoinedRoom) *messaging.SyncResponse {
	return &messaging.SyncResponse{
		NextBatch: nextBatch,
		Rooms: messaging.RoomsSection{
			Join: map[ref.RoomID]messaging.JoinedRoom{testRoom: delta},
		},
	}
}

// startSyncer runs a Syncer against the session until the test ends.
func startSyncer(t *testing.T, session *fakeSession) *Syncer {
	t.Helper()
	syncer, err := NewSyncer(Config{Session: session})
	if err != nil {
		t.Fatalf("NewSyncer failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		syncer.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return syncer
}

// waitForSnapshot receives snapshots until predicate matches or the
// test times out.
func waitForSnapshot(t *testing.T, syncer *Syncer, predicate func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snapshot := <-syncer.Snapshots():
			if predicate(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestSyncerAppliesResponses(t *testing.T) {
	session := &fakeSession{script: []syncStep{
		{response: joinResponse("s1", messaging.JoinedRoom{
			Timeline: messaging.TimelineSection{Events: []messaging.Event{
				textEvent("$1", "@a:example.org", "hi", 1000),
			}},
		})},
		{response: joinResponse("s2", messaging.JoinedRoom{
			Timeline: messaging.TimelineSection{Events: []messaging.Event{
				textEvent("$2", "@b:example.org", "yo", 2000),
			}},
		})},
	}}
	syncer := startSyncer(t, session)

	snapshot := waitForSnapshot(t, syncer, func(s Snapshot) bool {
		return s.State.NextBatchToken == "s2"
	})

	room, ok := snapshot.State.Room(testRoom)
	if !ok {
		t.Fatal("room missing from synced state")
	}
	if len(room.Timeline) != 2 {
		t.Errorf("timeline length = %d, want 2", len(room.Timeline))
	}
	if !snapshot.Connected {
		t.Error("connected flag should be set after a successful sync")
	}

	// The second request resumed from the first response's token, the
	// third from the second: one outstanding request at a time, merged
	// before the next is issued.
	calls := session.calls()
	if len(calls) < 3 {
		t.Fatalf("sync calls = %d, want at least 3", len(calls))
	}
	if calls[0].Since != "" || calls[1].Since != "s1" || calls[2].Since != "s2" {
		t.Errorf("since sequence = %q, %q, %q", calls[0].Since, calls[1].Since, calls[2].Since)
	}
}

func TestSyncerRetriesOnTransportError(t *testing.T) {
	session := &fakeSession{script: []syncStep{
		{err: errors.New("connection reset")},
		{response: &messaging.SyncResponse{NextBatch: "s1"}},
	}}
	syncer := startSyncer(t, session)

	disconnected := waitForSnapshot(t, syncer, func(s Snapshot) bool { return !s.Connected && s.State != nil })
	if disconnected.State.NextBatchToken != "" {
		t.Errorf("token advanced on transport error: %q", disconnected.State.NextBatchToken)
	}

	recovered := waitForSnapshot(t, syncer, func(s Snapshot) bool { return s.Connected })
	if recovered.State.NextBatchToken != "s1" {
		t.Errorf("token after recovery = %q, want s1", recovered.State.NextBatchToken)
	}

	calls := session.calls()
	if len(calls) < 2 {
		t.Fatalf("sync calls = %d, want at least 2", len(calls))
	}
	// The retry resumed from the same token with the short timeout.
	if calls[1].Since != calls[0].Since {
		t.Errorf("retry since = %q, want %q", calls[1].Since, calls[0].Since)
	}
	if calls[1].Timeout != retryTimeout {
		t.Errorf("retry timeout = %d, want %d", calls[1].Timeout, retryTimeout)
	}

	session.mu.Lock()
	drops := session.idleDrops
	session.mu.Unlock()
	if drops == 0 {
		t.Error("idle connections were not dropped after the transport error")
	}
}

func TestSyncerLongPollTimeout(t *testing.T) {
	run := func(t *testing.T, config Config) []messaging.SyncOptions {
		t.Helper()
		session := &fakeSession{script: []syncStep{
			{response: &messaging.SyncResponse{NextBatch: "s1"}},
		}}
		config.Session = session
		syncer, err := NewSyncer(config)
		if err != nil {
			t.Fatalf("NewSyncer failed: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			syncer.Run(ctx)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		waitForSnapshot(t, syncer, func(s Snapshot) bool { return s.State.NextBatchToken == "s1" })
		return session.calls()
	}

	t.Run("default hold time", func(t *testing.T) {
		calls := run(t, Config{})
		if !calls[0].SetTimeout || calls[0].Timeout != longPollTimeout {
			t.Errorf("sync timeout = %d (set=%v), want %d", calls[0].Timeout, calls[0].SetTimeout, longPollTimeout)
		}
	})

	t.Run("configured hold time", func(t *testing.T) {
		calls := run(t, Config{SyncTimeout: 5 * time.Second})
		if calls[0].Timeout != 5000 {
			t.Errorf("sync timeout = %d, want 5000", calls[0].Timeout)
		}
	})
}

func TestSyncerDiscardsMalformedResponse(t *testing.T) {
	malformed := joinResponse("s-bad", messaging.JoinedRoom{
		Timeline: messaging.TimelineSection{Events: []messaging.Event{{
			EventID: ref.NewEventID("$bad"),
			Type:    ref.EventType("m.room.member"),
			StateKey: func() *string {
				key := "@a:example.org"
				return &key
			}(),
			Content: json.RawMessage(`42`),
		}}},
	})
	session := &fakeSession{script: []syncStep{
		{response: malformed},
		{response: &messaging.SyncResponse{NextBatch: "s-good"}},
	}}
	syncer := startSyncer(t, session)

	failed := waitForSnapshot(t, syncer, func(s Snapshot) bool { return s.Err != nil })
	var decodeErr *state.DecodeError
	if !errors.As(failed.Err, &decodeErr) {
		t.Fatalf("snapshot error = %v, want *state.DecodeError", failed.Err)
	}
	if failed.State.NextBatchToken != "" {
		t.Errorf("token advanced past a discarded response: %q", failed.State.NextBatchToken)
	}

	recovered := waitForSnapshot(t, syncer, func(s Snapshot) bool {
		return s.State.NextBatchToken == "s-good"
	})
	if _, ok := recovered.State.Room(testRoom); ok {
		t.Error("room from the discarded response leaked into state")
	}
}

func TestLoadHistory(t *testing.T) {
	session := &fakeSession{
		script: []syncStep{
			{response: joinResponse("s1", messaging.JoinedRoom{
				Timeline: messaging.TimelineSection{
					Events:    []messaging.Event{textEvent("$3", "@a:example.org", "three", 3000)},
					PrevBatch: "p1",
				},
			})},
		},
		messagesFn: func(roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
			if options.From != "p1" {
				return nil, fmt.Errorf("unexpected from token %q", options.From)
			}
			return &messaging.RoomMessagesResponse{
				Chunk: []messaging.Event{
					textEvent("$2", "@a:example.org", "two", 2000),
					textEvent("$1", "@a:example.org", "one", 1000),
				},
				// No end token: history is exhausted.
			}, nil
		},
	}
	syncer := startSyncer(t, session)
	waitForSnapshot(t, syncer, func(s Snapshot) bool { return s.State.NextBatchToken == "s1" })

	loaded, err := syncer.LoadHistory(context.Background(), testRoom)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if !loaded {
		t.Fatal("LoadHistory reported nothing loaded")
	}

	snapshot := waitForSnapshot(t, syncer, func(s Snapshot) bool {
		room, ok := s.State.Room(testRoom)
		return ok && len(room.Timeline) == 3
	})
	room, _ := snapshot.State.Room(testRoom)
	want := []string{"$1", "$2", "$3"}
	for i, event := range room.Timeline {
		if event.EventID.String() != want[i] {
			t.Fatalf("timeline[%d] = %s, want %s", i, event.EventID, want[i])
		}
	}
	if !room.HistoryExhausted {
		t.Error("absent end cursor should mark history exhausted")
	}

	// A second load is a no-op on exhausted history.
	loaded, err = syncer.LoadHistory(context.Background(), testRoom)
	if err != nil {
		t.Fatalf("second LoadHistory failed: %v", err)
	}
	if loaded {
		t.Error("LoadHistory loaded from exhausted history")
	}
}

func TestSendLifecycle(t *testing.T) {
	t.Run("failure surfaces and is dismissible", func(t *testing.T) {
		sendErr := errors.New("gateway timeout")
		session := &fakeSession{
			sendFn: func(ref.RoomID, string, messaging.MessageContent) (ref.EventID, error) {
				return ref.EventID{}, sendErr
			},
		}
		syncer := startSyncer(t, session)

		syncer.SendText(context.Background(), testRoom, "doomed")

		var failures []state.SendFailure
		deadline := time.Now().Add(5 * time.Second)
		for {
			failures = syncer.Tracker().Failures()
			if len(failures) > 0 || time.Now().After(deadline) {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if len(failures) != 1 {
			t.Fatalf("failure count = %d, want 1", len(failures))
		}
		if !errors.Is(failures[0].Err, sendErr) {
			t.Errorf("failure error = %v", failures[0].Err)
		}
		if pending := syncer.Tracker().Pending(testRoom); len(pending) != 0 {
			t.Errorf("failed send still pending: %v", pending)
		}

		syncer.Tracker().DismissFailure(failures[0].TransactionID)
		if failures := syncer.Tracker().Failures(); len(failures) != 0 {
			t.Errorf("failures after dismissal: %v", failures)
		}
	})

	t.Run("sync echo retires the pending entry", func(t *testing.T) {
		echo := joinResponse("s1", messaging.JoinedRoom{
			Timeline: messaging.TimelineSection{Events: []messaging.Event{
				textEvent("$echo", "@self:example.org", "hello", 1000),
			}},
		})
		sent := make(chan struct{}, 1)
		session := &fakeSession{
			sendFn: func(roomID ref.RoomID, transactionID string, content messaging.MessageContent) (ref.EventID, error) {
				sent <- struct{}{}
				return ref.NewEventID("$echo"), nil
			},
		}
		syncer := startSyncer(t, session)

		syncer.SendText(context.Background(), testRoom, "hello")
		testutil.RequireReceive(t, sent, 5*time.Second, "send request issued")

		if pending := syncer.Tracker().Pending(testRoom); len(pending) != 1 {
			t.Fatalf("pending count before echo = %d, want 1", len(pending))
		}

		// Queue the echo response and wait for it to merge.
		session.mu.Lock()
		session.script = append(session.script, syncStep{response: echo})
		session.mu.Unlock()

		waitForSnapshot(t, syncer, func(s Snapshot) bool { return s.State.NextBatchToken == "s1" })
		if pending := syncer.Tracker().Pending(testRoom); len(pending) != 0 {
			t.Errorf("pending count after echo = %d, want 0", len(pending))
		}
	})
}

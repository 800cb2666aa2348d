// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/foyer/lib/ref"
)

// testSession creates a DirectSession backed by an httptest server with
// the given handler. Both are torn down when the test completes.
func testSession(t *testing.T, handler http.HandlerFunc) *DirectSession {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken(ref.NewUserID("@alice:example.org"), "test-token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestSync(t *testing.T) {
	t.Run("initial sync omits since and timeout", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/sync" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			if request.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("missing bearer token, got %q", request.Header.Get("Authorization"))
			}
			query := request.URL.Query()
			if query.Has("since") {
				t.Error("initial sync should not send since")
			}
			if query.Has("timeout") {
				t.Error("timeout parameter sent without SetTimeout")
			}
			json.NewEncoder(writer).Encode(SyncResponse{NextBatch: "s1"})
		})

		response, err := session.Sync(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if response.NextBatch != "s1" {
			t.Errorf("next_batch = %q, want s1", response.NextBatch)
		}
	})

	t.Run("incremental sync sends since and timeout", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			query := request.URL.Query()
			if query.Get("since") != "s1" {
				t.Errorf("since = %q, want s1", query.Get("since"))
			}
			if query.Get("timeout") != "30000" {
				t.Errorf("timeout = %q, want 30000", query.Get("timeout"))
			}
			json.NewEncoder(writer).Encode(SyncResponse{NextBatch: "s2"})
		})

		response, err := session.Sync(context.Background(), SyncOptions{
			Since: "s1", Timeout: 30000, SetTimeout: true,
		})
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if response.NextBatch != "s2" {
			t.Errorf("next_batch = %q, want s2", response.NextBatch)
		}
	})

	t.Run("joined room payload decodes", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`{
				"next_batch": "s3",
				"rooms": {
					"join": {
						"!abc:example.org": {
							"timeline": {
								"events": [{
									"event_id": "$e1",
									"type": "m.room.message",
									"sender": "@bob:example.org",
									"origin_server_ts": 1700000000000,
									"content": {"msgtype": "m.text", "body": "hi"}
								}],
								"prev_batch": "p1",
								"limited": false
							},
							"unread_notifications": {"notification_count": 2, "highlight_count": 1}
						}
					}
				}
			}`))
		})

		response, err := session.Sync(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		room, ok := response.Rooms.Join[ref.NewRoomID("!abc:example.org")]
		if !ok {
			t.Fatal("joined room !abc:example.org missing from decoded response")
		}
		if len(room.Timeline.Events) != 1 {
			t.Fatalf("timeline has %d events, want 1", len(room.Timeline.Events))
		}
		event := room.Timeline.Events[0]
		if event.EventID.String() != "$e1" {
			t.Errorf("event ID = %q, want $e1", event.EventID)
		}
		if event.Sender.String() != "@bob:example.org" {
			t.Errorf("sender = %q, want @bob:example.org", event.Sender)
		}
		if room.UnreadNotifications == nil || room.UnreadNotifications.NotificationCount != 2 {
			t.Errorf("unread counters did not decode: %+v", room.UnreadNotifications)
		}
	})
}

func TestSendMessage(t *testing.T) {
	session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", request.Method)
		}
		wantPath := "/_matrix/client/v3/rooms/" + "%21abc:example.org" + "/send/m.room.message/7"
		if request.URL.EscapedPath() != wantPath {
			t.Errorf("path = %q, want %q", request.URL.EscapedPath(), wantPath)
		}

		var content MessageContent
		if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
			t.Fatalf("failed to decode content: %v", err)
		}
		if content.MsgType != "m.text" || content.Body != "hello" {
			t.Errorf("unexpected content: %+v", content)
		}

		json.NewEncoder(writer).Encode(SendEventResponse{EventID: ref.NewEventID("$sent")})
	})

	eventID, err := session.SendMessage(context.Background(),
		ref.NewRoomID("!abc:example.org"), "7", NewTextMessage("hello"))
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if eventID.String() != "$sent" {
		t.Errorf("event ID = %q, want $sent", eventID)
	}
}

func TestRoomMessages(t *testing.T) {
	t.Run("defaults to backward pagination", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			query := request.URL.Query()
			if query.Get("dir") != "b" {
				t.Errorf("dir = %q, want b", query.Get("dir"))
			}
			if query.Get("from") != "p1" {
				t.Errorf("from = %q, want p1", query.Get("from"))
			}
			if query.Get("limit") != "40" {
				t.Errorf("limit = %q, want 40", query.Get("limit"))
			}
			json.NewEncoder(writer).Encode(RoomMessagesResponse{Start: "p1", End: "p2"})
		})

		response, err := session.RoomMessages(context.Background(),
			ref.NewRoomID("!abc:example.org"), RoomMessagesOptions{From: "p1", Limit: 40})
		if err != nil {
			t.Fatalf("RoomMessages failed: %v", err)
		}
		if response.End != "p2" {
			t.Errorf("end = %q, want p2", response.End)
		}
	})

	t.Run("absent end token decodes as empty", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`{"start": "p9", "chunk": []}`))
		})

		response, err := session.RoomMessages(context.Background(),
			ref.NewRoomID("!abc:example.org"), RoomMessagesOptions{From: "p9"})
		if err != nil {
			t.Fatalf("RoomMessages failed: %v", err)
		}
		if response.End != "" {
			t.Errorf("end = %q, want empty (history exhausted)", response.End)
		}
	})
}

func TestSendTyping(t *testing.T) {
	var lastRequest TypingRequest
	session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/typing/@alice:example.org") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		lastRequest = TypingRequest{}
		if err := json.NewDecoder(request.Body).Decode(&lastRequest); err != nil {
			t.Fatalf("failed to decode typing request: %v", err)
		}
		writer.Write([]byte(`{}`))
	})

	if err := session.SendTyping(context.Background(), ref.NewRoomID("!abc:example.org"), true, 20000); err != nil {
		t.Fatalf("SendTyping(true) failed: %v", err)
	}
	if !lastRequest.Typing || lastRequest.Timeout != 20000 {
		t.Errorf("typing start request = %+v", lastRequest)
	}

	if err := session.SendTyping(context.Background(), ref.NewRoomID("!abc:example.org"), false, 20000); err != nil {
		t.Fatalf("SendTyping(false) failed: %v", err)
	}
	if lastRequest.Typing || lastRequest.Timeout != 0 {
		t.Errorf("typing stop request = %+v, timeout should be omitted", lastRequest)
	}
}

func TestSendReadReceipt(t *testing.T) {
	session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", request.Method)
		}
		if !strings.HasSuffix(request.URL.Path, "/receipt/m.read/$e1") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writer.Write([]byte(`{}`))
	})

	err := session.SendReadReceipt(context.Background(),
		ref.NewRoomID("!abc:example.org"), ref.NewEventID("$e1"))
	if err != nil {
		t.Fatalf("SendReadReceipt failed: %v", err)
	}
}

func TestAccountData(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{
				"errcode": "M_NOT_FOUND",
				"error":   "Account data not found",
			})
		})

		_, err := session.GetAccountData(context.Background(), ref.EventType("m.direct"))
		if !IsMatrixError(err, ErrCodeNotFound) {
			t.Fatalf("expected M_NOT_FOUND, got %v", err)
		}
	})

	t.Run("set then get path shape", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			wantPath := "/_matrix/client/v3/user/@alice:example.org/account_data/m.direct"
			if request.URL.Path != wantPath {
				t.Errorf("path = %q, want %q", request.URL.Path, wantPath)
			}
			if request.Method == http.MethodPut {
				writer.Write([]byte(`{}`))
				return
			}
			writer.Write([]byte(`{"@bob:example.org": ["!dm:example.org"]}`))
		})

		direct := map[string][]string{"@bob:example.org": {"!dm:example.org"}}
		if err := session.SetAccountData(context.Background(), ref.EventType("m.direct"), direct); err != nil {
			t.Fatalf("SetAccountData failed: %v", err)
		}

		raw, err := session.GetAccountData(context.Background(), ref.EventType("m.direct"))
		if err != nil {
			t.Fatalf("GetAccountData failed: %v", err)
		}
		var decoded map[string][]string
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decoding account data: %v", err)
		}
		if len(decoded["@bob:example.org"]) != 1 {
			t.Errorf("decoded account data = %v", decoded)
		}
	})
}

func TestGetRoomMembers(t *testing.T) {
	session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(`{
			"chunk": [
				{
					"event_id": "$m1",
					"type": "m.room.member",
					"sender": "@bob:example.org",
					"state_key": "@bob:example.org",
					"origin_server_ts": 1,
					"content": {"membership": "join", "displayname": "Bob"}
				},
				{
					"event_id": "$m2",
					"type": "m.room.member",
					"sender": "@carol:example.org",
					"state_key": "@carol:example.org",
					"origin_server_ts": 2,
					"content": {"membership": "leave"}
				}
			]
		}`))
	})

	members, err := session.GetRoomMembers(context.Background(), ref.NewRoomID("!abc:example.org"))
	if err != nil {
		t.Fatalf("GetRoomMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].DisplayName != "Bob" || members[0].Membership != "join" {
		t.Errorf("first member = %+v", members[0])
	}
	if members[1].Membership != "leave" {
		t.Errorf("second member = %+v", members[1])
	}
}

func TestGetDisplayName(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			json.NewEncoder(writer).Encode(DisplayNameResponse{DisplayName: "Alice"})
		})
		name, err := session.GetDisplayName(context.Background(), ref.NewUserID("@alice:example.org"))
		if err != nil {
			t.Fatalf("GetDisplayName failed: %v", err)
		}
		if name != "Alice" {
			t.Errorf("display name = %q, want Alice", name)
		}
	})

	t.Run("unset maps to empty string", func(t *testing.T) {
		session := testSession(t, func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{
				"errcode": "M_NOT_FOUND",
				"error":   "Profile was not found",
			})
		})
		name, err := session.GetDisplayName(context.Background(), ref.NewUserID("@nobody:example.org"))
		if err != nil {
			t.Fatalf("GetDisplayName failed: %v", err)
		}
		if name != "" {
			t.Errorf("display name = %q, want empty", name)
		}
	})
}

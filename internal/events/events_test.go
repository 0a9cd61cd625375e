package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chat-sync/internal/models"
)

func TestUnmarshalDecodesTypedPayload(t *testing.T) {
	msg := models.Message{ID: "m1", ChatID: "chat-1", SenderID: "u1", Content: "hi", SentAt: time.Now().UTC()}
	raw, err := json.Marshal(NewMessage(msg, "tok"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload, ok := ev.Data.(*MessagePayload)
	if !ok {
		t.Fatalf("expected *MessagePayload, got %T", ev.Data)
	}
	if payload.Message.ID != "m1" || payload.ClientToken != "tok" {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestUnmarshalRejectsUnknownType(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"id":"e1","type":"teleport","roomId":"chat-1"}`), &ev)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestMessageEventIDsAreStable(t *testing.T) {
	msg := models.Message{ID: "m1", ChatID: "chat-1", SentAt: time.Now()}
	a := NewMessage(msg, "")
	b := NewMessage(msg, "")
	if a.ID != b.ID {
		t.Fatalf("same message must produce the same event id: %q vs %q", a.ID, b.ID)
	}

	deletedAt := time.Now()
	if NewMessageDeleted("chat-1", "m1", deletedAt).ID != NewMessageDeleted("chat-1", "m1", deletedAt).ID {
		t.Fatalf("delete event id must be stable")
	}
}

func TestEditBumpsEventID(t *testing.T) {
	msg := models.Message{ID: "m1", ChatID: "chat-1"}
	first := NewMessageUpdated(msg)

	editedAt := time.Now()
	msg.EditedAt = &editedAt
	second := NewMessageUpdated(msg)

	if first.ID == second.ID {
		t.Fatalf("a fresh edit must produce a fresh event id")
	}
}

func TestOriginConnNeverSerialized(t *testing.T) {
	ev := NewTyping("chat-1", "u1", "alice", true)
	ev.OriginConn = "conn-secret"
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for key := range decoded {
		if key == "OriginConn" || key == "origin_conn" {
			t.Fatalf("origin connection leaked onto the wire")
		}
	}
}

func TestUserRoom(t *testing.T) {
	if UserRoom("u1") != "user:u1" {
		t.Fatalf("unexpected personal room id %q", UserRoom("u1"))
	}
}

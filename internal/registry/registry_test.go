package registry

import (
	"testing"

	"chat-sync/internal/events"
)

type stubConn struct {
	id     string
	sent   []*events.Event
	closed bool
}

func (c *stubConn) ID() string                  { return c.id }
func (c *stubConn) Send(ev *events.Event) error { c.sent = append(c.sent, ev); return nil }
func (c *stubConn) Close() error                { c.closed = true; return nil }

func TestJoinAndLeaveRoom(t *testing.T) {
	reg := NewRegistry()
	conn := &stubConn{id: "c1"}

	reg.Add(conn)
	reg.JoinRoom("c1", "chat-1")
	if reg.Rooms() != 1 {
		t.Fatalf("expected room to be created")
	}
	if members := reg.MembersOf("chat-1"); len(members) != 1 {
		t.Fatalf("expected one member, got %d", len(members))
	}

	reg.LeaveRoom("c1", "chat-1")
	if reg.Rooms() != 0 {
		t.Fatalf("expected empty room to be removed")
	}
}

func TestJoinUnknownConnIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.JoinRoom("ghost", "chat-1")
	if reg.Rooms() != 0 {
		t.Fatalf("expected no room for unknown connection")
	}
}

func TestRegisterJoinsUserRoom(t *testing.T) {
	reg := NewRegistry()
	conn := &stubConn{id: "c1"}
	reg.Add(conn)

	if err := reg.Register("c1", "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if members := reg.MembersOf(events.UserRoom("u1")); len(members) != 1 {
		t.Fatalf("expected connection in personal room")
	}
	if userID, ok := reg.UserOf("c1"); !ok || userID != "u1" {
		t.Fatalf("expected UserOf to return u1, got %q", userID)
	}
}

func TestRegisterIsIdempotentForSameUser(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubConn{id: "c1"})

	if err := reg.Register("c1", "u1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register("c1", "u1"); err != nil {
		t.Fatalf("repeat register should be a no-op: %v", err)
	}
}

func TestRegisterDifferentUserFails(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubConn{id: "c1"})

	if err := reg.Register("c1", "u1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register("c1", "u2"); err != ErrAlreadyRegisteredAsDifferentUser {
		t.Fatalf("expected ErrAlreadyRegisteredAsDifferentUser, got %v", err)
	}
}

func TestRemoveReturnsRoomsAndUser(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&stubConn{id: "c1"})
	if err := reg.Register("c1", "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.JoinRoom("c1", "chat-1")
	reg.JoinRoom("c1", "chat-2")

	rooms, userID := reg.Remove("c1")
	if userID != "u1" {
		t.Fatalf("expected u1, got %q", userID)
	}
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms (2 chats + personal), got %d", len(rooms))
	}
	if reg.Connections() != 0 || reg.Rooms() != 0 {
		t.Fatalf("expected registry to be empty after remove")
	}
}

func TestMembersOfIsSnapshot(t *testing.T) {
	reg := NewRegistry()
	a := &stubConn{id: "a"}
	b := &stubConn{id: "b"}
	reg.Add(a)
	reg.Add(b)
	reg.JoinRoom("a", "chat-1")
	reg.JoinRoom("b", "chat-1")

	members := reg.MembersOf("chat-1")
	reg.LeaveRoom("a", "chat-1")
	if len(members) != 2 {
		t.Fatalf("snapshot should keep both members, got %d", len(members))
	}
}

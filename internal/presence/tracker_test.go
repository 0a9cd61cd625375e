package presence

import (
	"sync"
	"testing"
	"time"
)

func TestStartAndStop(t *testing.T) {
	tr := NewTracker(time.Minute, nil)

	tr.Start("chat-1", "u1", "alice")
	if got := tr.Snapshot("chat-1"); len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("expected alice typing, got %v", got)
	}

	if !tr.Stop("chat-1", "u1") {
		t.Fatalf("expected Stop to report a cleared entry")
	}
	if got := tr.Snapshot("chat-1"); len(got) != 0 {
		t.Fatalf("expected empty set after stop, got %v", got)
	}
}

func TestStopWithoutEntry(t *testing.T) {
	tr := NewTracker(time.Minute, nil)
	if tr.Stop("chat-1", "ghost") {
		t.Fatalf("expected Stop to report no entry")
	}
}

func TestEntryExpires(t *testing.T) {
	var mu sync.Mutex
	var expired []string
	done := make(chan struct{})

	tr := NewTracker(20*time.Millisecond, func(roomID, userID, username string) {
		mu.Lock()
		expired = append(expired, roomID+"/"+userID+"/"+username)
		mu.Unlock()
		close(done)
	})

	tr.Start("chat-1", "u1", "alice")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("typing entry never expired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "chat-1/u1/alice" {
		t.Fatalf("unexpected expiry: %v", expired)
	}
	if got := tr.Snapshot("chat-1"); len(got) != 0 {
		t.Fatalf("expected entry gone after expiry, got %v", got)
	}
}

func TestRefreshExtendsLifetime(t *testing.T) {
	expired := make(chan struct{}, 1)
	tr := NewTracker(50*time.Millisecond, func(roomID, userID, username string) {
		expired <- struct{}{}
	})

	tr.Start("chat-1", "u1", "alice")
	for i := 0; i < 3; i++ {
		time.Sleep(25 * time.Millisecond)
		tr.Start("chat-1", "u1", "alice")
		select {
		case <-expired:
			t.Fatalf("entry expired despite refresh")
		default:
		}
	}
}

func TestClearUser(t *testing.T) {
	tr := NewTracker(time.Minute, nil)
	tr.Start("chat-1", "u1", "alice")
	tr.Start("chat-2", "u1", "alice")
	tr.Start("chat-2", "u2", "bob")

	cleared := tr.ClearUser("u1", []string{"chat-1", "chat-2", "chat-3"})
	if len(cleared) != 2 {
		t.Fatalf("expected 2 cleared rooms, got %v", cleared)
	}
	if got := tr.Snapshot("chat-2"); len(got) != 1 || got[0].UserID != "u2" {
		t.Fatalf("expected bob still typing in chat-2, got %v", got)
	}
}

package presence

import (
	"sync"
	"time"
)

// DefaultTTL is how long a typing entry survives without a refresh before
// the tracker clears it and reports the expiry.
const DefaultTTL = 2 * time.Second

// TypingUser is one entry in a room's typing set.
type TypingUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type entry struct {
	username string
	timer    *time.Timer
}

// Tracker keeps the ephemeral per-room "who is typing" sets. Entries decay
// after TTL without a refresh; nothing here is ever persisted.
type Tracker struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*entry
	ttl      time.Duration
	onExpire func(roomID, userID, username string)
}

// NewTracker builds a tracker. onExpire is called (on a timer goroutine,
// without the tracker lock held) whenever an entry decays so the caller can
// broadcast a synthetic stop-typing event; it may be nil.
func NewTracker(ttl time.Duration, onExpire func(roomID, userID, username string)) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		rooms:    make(map[string]map[string]*entry),
		ttl:      ttl,
		onExpire: onExpire,
	}
}

// Start adds the user to the room's typing set, or refreshes the expiry if
// already present.
func (t *Tracker) Start(roomID, userID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]*entry)
		t.rooms[roomID] = users
	}
	if e, ok := users[userID]; ok {
		e.username = username
		e.timer.Reset(t.ttl)
		return
	}
	e := &entry{username: username}
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(roomID, userID) })
	users[userID] = e
}

// Stop removes the user from the room's typing set, reporting whether an
// entry was actually present.
func (t *Tracker) Stop(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(roomID, userID)
}

func (t *Tracker) removeLocked(roomID, userID string) bool {
	users, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	e, ok := users[userID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

func (t *Tracker) expire(roomID, userID string) {
	t.mu.Lock()
	users, ok := t.rooms[roomID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e, ok := users[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	username := e.username
	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	onExpire := t.onExpire
	t.mu.Unlock()

	if onExpire != nil {
		onExpire(roomID, userID, username)
	}
}

// Snapshot returns a copy of the room's typing set.
func (t *Tracker) Snapshot(roomID string) []TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]TypingUser, 0, len(users))
	for id, e := range users {
		out = append(out, TypingUser{UserID: id, Username: e.username})
	}
	return out
}

// ClearUser removes the user's typing entries from the given rooms,
// returning the rooms where an entry was cleared. Called when the owning
// connection disconnects.
func (t *Tracker) ClearUser(userID string, rooms []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cleared []string
	for _, roomID := range rooms {
		if t.removeLocked(roomID, userID) {
			cleared = append(cleared, roomID)
		}
	}
	return cleared
}

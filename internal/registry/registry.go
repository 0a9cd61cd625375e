package registry

import (
	"errors"
	"sync"

	"chat-sync/internal/events"
)

// ErrAlreadyRegisteredAsDifferentUser is returned when a connection that is
// already bound to one user tries to register as another. Re-registering
// with the same id is a no-op.
var ErrAlreadyRegisteredAsDifferentUser = errors.New("connection already registered as different user")

// Conn is a live client connection, whatever transport carries it. Send
// must not block: implementations queue outbound events independently so a
// slow consumer never stalls a broadcast.
type Conn interface {
	ID() string
	Send(ev *events.Event) error
	Close() error
}

// room holds one broadcast group. Rooms are created on first join and
// removed when the member set becomes empty.
type room struct {
	mu      sync.RWMutex
	members map[string]Conn
}

type connState struct {
	conn   Conn
	userID string
	rooms  map[string]struct{}
}

// Registry maintains the live room<->connection mapping. It holds no
// durable state; clients repair missed events via resync after reconnect.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	conns map[string]*connState
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		conns: make(map[string]*connState),
	}
}

// Add tracks a new connection. It must be called before JoinRoom.
func (r *Registry) Add(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; ok {
		return
	}
	r.conns[conn.ID()] = &connState{conn: conn, rooms: make(map[string]struct{})}
}

// Register binds a connection to a user identity, exactly once per
// connection lifetime, and joins the user's personal notification room.
func (r *Registry) Register(connID, userID string) error {
	r.mu.Lock()
	state, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if state.userID != "" && state.userID != userID {
		r.mu.Unlock()
		return ErrAlreadyRegisteredAsDifferentUser
	}
	if state.userID == userID {
		r.mu.Unlock()
		return nil
	}
	state.userID = userID
	r.joinLocked(state, events.UserRoom(userID))
	r.mu.Unlock()
	return nil
}

// UserOf returns the user id a connection registered as, if any.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.conns[connID]
	if !ok || state.userID == "" {
		return "", false
	}
	return state.userID, true
}

// JoinRoom adds the connection to a room, creating the room on first join.
// Unknown connections are a benign no-op: a join can race a disconnect.
func (r *Registry) JoinRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.conns[connID]
	if !ok {
		return
	}
	r.joinLocked(state, roomID)
}

func (r *Registry) joinLocked(state *connState, roomID string) {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]Conn)}
		r.rooms[roomID] = rm
	}
	rm.mu.Lock()
	rm.members[state.conn.ID()] = state.conn
	rm.mu.Unlock()
	state.rooms[roomID] = struct{}{}
}

// LeaveRoom removes the connection from a room. Unknown rooms and
// connections are no-ops, never errors.
func (r *Registry) LeaveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(state.rooms, roomID)
	r.leaveLocked(connID, roomID)
}

func (r *Registry) leaveLocked(connID, roomID string) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, connID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, roomID)
	}
}

// Remove drops the connection from every room and forgets it, returning
// the rooms it was in and the user it registered as so callers can clear
// derived state (typing entries) for those rooms.
func (r *Registry) Remove(connID string) (rooms []string, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.conns[connID]
	if !ok {
		return nil, ""
	}
	for roomID := range state.rooms {
		rooms = append(rooms, roomID)
		r.leaveLocked(connID, roomID)
	}
	delete(r.conns, connID)
	return rooms, state.userID
}

// MembersOf returns a snapshot of the room's member connections. The copy
// is safe to iterate while other goroutines join and leave.
func (r *Registry) MembersOf(roomID string) []Conn {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	members := make([]Conn, 0, len(rm.members))
	for _, c := range rm.members {
		members = append(members, c)
	}
	return members
}

// Rooms reports how many rooms currently have members.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections reports how many live connections are tracked.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

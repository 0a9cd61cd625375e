package router

import (
	"errors"
	"fmt"
	"log"
	"time"

	"chat-sync/internal/events"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/registry"
)

var (
	ErrMissingRoom = errors.New("event has no target room")
)

// Router accepts typed events and delivers them to every current member of
// the target room. Delivery is best-effort: a connection that is not a
// member at dispatch time never receives the event and repairs its state
// via resync instead.
type Router struct {
	registry *registry.Registry
	typing   *presence.Tracker
}

// NewRouter wires the router to its registry and builds the typing tracker
// whose expiries broadcast synthetic stop-typing events. A zero typingTTL
// uses the default 2s window.
func NewRouter(reg *registry.Registry, typingTTL time.Duration) *Router {
	r := &Router{registry: reg}
	r.typing = presence.NewTracker(typingTTL, func(roomID, userID, username string) {
		ev := events.NewTyping(roomID, userID, username, false)
		if err := r.Dispatch(ev); err != nil {
			log.Printf("typing expiry broadcast failed for room %s: %v", roomID, err)
		}
	})
	return r
}

// Typing exposes the tracker for transports that report explicit
// start/stop frames.
func (r *Router) Typing() *presence.Tracker {
	return r.typing
}

// Dispatch validates the event and fans it out to the target room. Typing
// events are not echoed to the origin connection; every other kind is,
// because the origin user may have further devices that need the confirmed
// server-assigned fields. Membership changes additionally notify the
// affected user's personal room so devices not viewing the conversation
// still refresh their chat list.
func (r *Router) Dispatch(ev *events.Event) error {
	if !events.Known(ev.Type) {
		return fmt.Errorf("%w: %q", events.ErrUnknownType, ev.Type)
	}
	if ev.RoomID == "" {
		return ErrMissingRoom
	}

	observability.IncFanout(string(ev.Type))
	r.fanout(ev)

	if payload, ok := ev.Data.(*events.MembershipPayload); ok {
		note := events.NewChatNotification(ev.RoomID, ev.Type == events.TypeUserJoined, payload.User)
		observability.IncFanout(string(note.Type))
		r.fanout(note)
	}
	return nil
}

// fanout delivers to each member, isolating per-recipient failures: a dead
// connection is closed and removed, and the loop continues.
func (r *Router) fanout(ev *events.Event) {
	skipOrigin := ev.Type == events.TypeTyping || ev.Type == events.TypeStopTyping

	for _, conn := range r.registry.MembersOf(ev.RoomID) {
		if skipOrigin && ev.OriginConn != "" && conn.ID() == ev.OriginConn {
			continue
		}
		if err := conn.Send(ev); err != nil {
			log.Printf("fanout send failed conn=%s room=%s: %v", conn.ID(), ev.RoomID, err)
			observability.IncFanoutDropped("send_error")
			_ = conn.Close()
			r.HandleDisconnect(conn.ID())
		}
	}
}

// HandleConnect tracks a new connection prior to registration and joins.
func (r *Router) HandleConnect(conn registry.Conn) {
	r.registry.Add(conn)
}

// Register binds a connection to its authenticated user. Transports call
// this from the handshake; a later register_user frame with the same id is
// a no-op.
func (r *Router) Register(connID, userID string) error {
	return r.registry.Register(connID, userID)
}

// HandleDisconnect removes the connection from every room and clears its
// typing entries, broadcasting stop-typing where an entry was present.
func (r *Router) HandleDisconnect(connID string) {
	rooms, userID := r.registry.Remove(connID)
	if userID == "" || len(rooms) == 0 {
		return
	}
	for _, roomID := range r.typing.ClearUser(userID, rooms) {
		ev := events.NewTyping(roomID, userID, "", false)
		r.fanout(ev)
	}
}

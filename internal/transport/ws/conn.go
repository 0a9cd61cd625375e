package ws

import (
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"chat-sync/internal/events"
	"chat-sync/internal/observability"
)

var ErrConnClosed = errors.New("connection closed")

// sendBuffer bounds each connection's independent outbound queue. A full
// buffer drops the event rather than blocking fan-out to other members.
const sendBuffer = 64

// Conn wraps one websocket connection behind the registry.Conn contract.
type Conn struct {
	id   string
	sock *websocket.Conn
	send chan *events.Event

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:   id,
		sock: sock,
		send: make(chan *events.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Send queues the event without blocking. Slow consumers lose events and
// recover them through resync.
func (c *Conn) Send(ev *events.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		log.Printf("ws conn %s buffer full, dropping %s event", c.id, ev.Type)
		observability.IncFanoutDropped("buffer_full")
		return nil
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.sock.Close()
	})
	return err
}

func (c *Conn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			if err := c.sock.WriteJSON(ev); err != nil {
				log.Printf("ws write error (conn %s): %v", c.id, err)
				return
			}
		}
	}
}

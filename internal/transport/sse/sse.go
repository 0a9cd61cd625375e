package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/events"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/registry"
	"chat-sync/internal/router"
)

const transportKind = "sse"

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
)

var ErrConnClosed = errors.New("connection closed")

// Conn is a server-sent-events connection. Receiving happens on the GET
// stream; the client sends frames via the paired POST endpoint. The
// registry and router see the same Conn contract as the websocket path.
type Conn struct {
	id   string
	send chan *events.Event

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string) *Conn {
	return &Conn{
		id:   id,
		send: make(chan *events.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

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
		log.Printf("sse conn %s buffer full, dropping %s event", c.id, ev.Type)
		observability.IncFanoutDropped("buffer_full")
		return nil
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Handler serves the SSE stream and its frame ingestion endpoint for
// clients that cannot hold a duplex socket.
type Handler struct {
	router    *router.Router
	registry  *registry.Registry
	validator middleware.TokenValidator
}

func NewHandler(r *router.Router, reg *registry.Registry, validator middleware.TokenValidator) *Handler {
	return &Handler{router: r, registry: reg, validator: validator}
}

// Stream authenticates and holds the event stream open. The first frame on
// the stream tells the client its connection id, which it must echo on
// frame POSTs.
func (h *Handler) Stream(c *gin.Context) {
	token := middleware.BearerToken(c.Request)
	userID, _, err := h.validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn := newConn(uuid.NewString())
	h.router.HandleConnect(conn)
	if err := h.router.Register(conn.ID(), userID); err != nil {
		log.Printf("sse register failed conn=%s: %v", conn.ID(), err)
		h.router.HandleDisconnect(conn.ID())
		_ = conn.Close()
		c.JSON(http.StatusConflict, gin.H{"error": "registration failed"})
		return
	}

	observability.IncWSActive(transportKind)
	observability.IncWSEvent(transportKind, "ws_connect")
	defer func() {
		h.router.HandleDisconnect(conn.ID())
		_ = conn.Close()
		observability.DecWSActive(transportKind)
		observability.IncWSEvent(transportKind, "ws_disconnect")
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	writeChunk(c, map[string]string{"type": "connected", "conn_id": conn.ID()})

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-conn.done:
			return
		case ev := <-conn.send:
			writeChunk(c, ev)
		case <-ping.C:
			writeChunk(c, map[string]string{"type": "ping"})
		}
	}
}

// PostFrame accepts one client->server frame for an open SSE stream. The
// frame is handled exactly as if it had arrived on a websocket.
func (h *Handler) PostFrame(c *gin.Context) {
	token := middleware.BearerToken(c.Request)
	userID, _, err := h.validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	connID := c.Query("conn_id")
	if connID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conn_id is required"})
		return
	}
	if owner, ok := h.registry.UserOf(connID); !ok || owner != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "connection does not belong to caller"})
		return
	}

	var frame events.Frame
	if err := c.ShouldBindJSON(&frame); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.router.HandleFrame(connID, frame); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func writeChunk(c *gin.Context, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", body)
	c.Writer.Flush()
}

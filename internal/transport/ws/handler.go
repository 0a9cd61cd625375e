package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/router"
)

const transportKind = "ws"

// Handler upgrades authenticated requests to websocket connections and
// feeds their frames into the event router.
type Handler struct {
	router    *router.Router
	validator middleware.TokenValidator
}

func NewHandler(r *router.Router, validator middleware.TokenValidator) *Handler {
	return &Handler{router: r, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, registers the connection and pumps
// frames until the peer goes away.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := middleware.BearerToken(c.Request)
	userID, _, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := newConn(uuid.NewString(), sock)
	connectedAt := time.Now()
	h.router.HandleConnect(conn)
	if err := h.router.Register(conn.ID(), userID); err != nil {
		log.Printf("ws register failed conn=%s: %v", conn.ID(), err)
		h.router.HandleDisconnect(conn.ID())
		_ = conn.Close()
		return
	}

	observability.IncWSActive(transportKind)
	observability.IncWSEvent(transportKind, "ws_connect")
	publishLifecycle(ctx, c.Request, conn.ID(), userID, "ws_connect", 0, "")

	go conn.writePump()

	go func() {
		var closeReason string
		defer func() {
			h.router.HandleDisconnect(conn.ID())
			_ = conn.Close()
			observability.DecWSActive(transportKind)
			observability.IncWSEvent(transportKind, "ws_disconnect")
			publishLifecycle(context.Background(), c.Request, conn.ID(), userID, "ws_disconnect",
				time.Since(connectedAt).Milliseconds(), closeReason)
		}()
		for {
			frame, err := readFrame(sock)
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(transportKind, "ws_error")
				}
				return
			}
			if err := h.router.HandleFrame(conn.ID(), frame); err != nil {
				// Malformed or rejected frames never tear the socket down.
				log.Printf("ws frame rejected conn=%s action=%s: %v", conn.ID(), frame.Action, err)
			}
		}
	}()
}

func publishLifecycle(ctx context.Context, r *http.Request, connID, userID, event string, durationMS int64, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events."+transportKind, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"transport":   transportKind,
				"event":       event,
				"conn_id":     connID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   userID,
				"device_id": observability.DeviceIDFromRequest(r),
				"ip":        observability.IPFromRequest(r),
			},
		},
	})
}

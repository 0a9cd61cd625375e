package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func callerIdentity(c *gin.Context) (string, string) {
	return middleware.Identity(c)
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, text string) {
	if audit == nil {
		return
	}
	userID, _ := callerIdentity(c)
	var uid *string
	if userID != "" {
		uid = &userID
	}
	audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), uid)
}

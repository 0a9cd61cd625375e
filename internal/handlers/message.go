package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/events"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
	"chat-sync/internal/router"
	"chat-sync/internal/telemetry"
)

// MessageHandler manages message mutations. Every mutation writes through
// the repository first and fans the event out only after the write
// succeeds, so a broadcast never races ahead of durable state.
type MessageHandler struct {
	chatRepo     repositories.ChatRepository
	messageRepo  repositories.MessageRepository
	reactionRepo repositories.ReactionRepository
	router       *router.Router
	audit        *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler. The audit emitter may be nil.
func NewMessageHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, reactionRepo repositories.ReactionRepository, r *router.Router, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		router:       r,
		audit:        audit,
	}
}

// GetMessages pages through a chat's history, oldest-first, using the
// before cursor for scroll-back.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID, _ := callerIdentity(c)

	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before = parsed
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, err := h.messageRepo.GetMessages(c.Request.Context(), chatID, before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it to the chat room. The
// echoed event carries the caller's correlation token so the sender's
// devices can replace their optimistic entry with the confirmed record.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID, username := callerIdentity(c)

	var req struct {
		Content     string `json:"content" binding:"required"`
		ClientToken string `json:"client_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, userID, username,
		models.KindMessage, req.Content)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if err := h.router.Dispatch(events.NewMessage(msg, req.ClientToken)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast message"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// EditMessage updates a message's content (sender only) and broadcasts the
// edited record.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID := c.Param("message_id")
	userID, _ := callerIdentity(c)

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.UpdateMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
			emitAudit(c, h.audit, "ERROR", "message not found")
		} else {
			emitAudit(c, h.audit, "ERROR", "internal error")
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	if err := h.router.Dispatch(events.NewMessageUpdated(msg)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast edit"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Message edited")
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage tombstones a message (sender only) and broadcasts the
// deletion. The record keeps its place in the sequence.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("message_id")
	userID, _ := callerIdentity(c)

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	deletedAt, err := h.messageRepo.SoftDeleteMessage(c.Request.Context(), messageID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	if err := h.router.Dispatch(events.NewMessageDeleted(msg.ChatID, messageID, deletedAt)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast deletion"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

// ReadBatch marks a batch of messages as read by the caller and broadcasts
// a single receipt event for the batch.
func (h *MessageHandler) ReadBatch(c *gin.Context) {
	userID, username := callerIdentity(c)

	var req struct {
		ChatID     string   `json:"chat_id" binding:"required"`
		MessageIDs []string `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.MessageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_ids is empty"})
		return
	}

	if !h.requireParticipant(c, req.ChatID, userID) {
		return
	}

	readAt := time.Now().UTC()
	if err := h.messageRepo.MarkRead(c.Request.Context(), req.MessageIDs, userID, username, readAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	if err := h.router.Dispatch(events.NewMessagesRead(req.ChatID, req.MessageIDs, userID, username, readAt)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast receipts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleReaction flips the caller's reaction on a message and returns the
// authoritative reaction list, which is also what peers receive: clients
// replace, never patch, their local list.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	messageID := c.Param("message_id")
	userID, username := callerIdentity(c)

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	if !h.requireParticipant(c, msg.ChatID, userID) {
		return
	}

	reactions, err := h.reactionRepo.ToggleReaction(c.Request.Context(), messageID, userID, username, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle reaction"})
		return
	}

	if err := h.router.Dispatch(events.NewReactionChanged(msg.ChatID, messageID, reactions)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast reaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

func (h *MessageHandler) requireParticipant(c *gin.Context, chatID, userID string) bool {
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return false
	}
	return true
}

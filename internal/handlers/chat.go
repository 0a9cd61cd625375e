package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/events"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
	"chat-sync/internal/router"
	"chat-sync/internal/telemetry"
)

// ChatHandler manages conversations and their membership.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	router      *router.Router
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler. The audit emitter may be nil.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, r *router.Router, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, messageRepo: messageRepo, router: r, audit: audit}
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, _ := callerIdentity(c)

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// CreateChat creates a conversation with the caller as admin and notifies
// every added participant's personal room.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, username := callerIdentity(c)

	var req struct {
		Type         models.ChatType `json:"type" binding:"required"`
		Name         string          `json:"name"`
		Participants []struct {
			UserID   string `json:"user_id" binding:"required"`
			Username string `json:"username"`
		} `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != models.ChatIndividual && req.Type != models.ChatGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat type"})
		return
	}

	chat, err := h.chatRepo.CreateChat(c.Request.Context(), req.Type, req.Name, userID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	if _, err := h.chatRepo.AddParticipant(c.Request.Context(), chat.ID, userID, username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		return
	}
	for _, p := range req.Participants {
		if p.UserID == userID {
			continue
		}
		participant, err := h.chatRepo.AddParticipant(c.Request.Context(), chat.ID, p.UserID, p.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
			return
		}
		if err := h.router.Dispatch(events.NewMembership(chat.ID, true, participant, nil)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not notify participants"})
			return
		}
	}

	emitAudit(c, h.audit, "INFO", "Chat created")
	c.JSON(http.StatusCreated, chat)
}

// AddParticipant adds a user to a chat, records a system message and fans
// out the membership change.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID, _ := callerIdentity(c)

	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireParticipant(c, chatID, userID) {
		return
	}

	participant, err := h.chatRepo.AddParticipant(c.Request.Context(), chatID, req.UserID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		return
	}

	sysMsg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, req.UserID, req.Username,
		models.KindSystem, fmt.Sprintf("%s joined the chat", req.Username))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record join"})
		return
	}

	if err := h.router.Dispatch(events.NewMembership(chatID, true, participant, &sysMsg)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not notify participants"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Participant added")
	c.JSON(http.StatusCreated, participant)
}

// RemoveParticipant removes a user from a chat. Participants may remove
// themselves; only the admin may remove others.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chatID := c.Param("chat_id")
	targetID := c.Param("user_id")
	userID, _ := callerIdentity(c)

	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return
	}
	if targetID != userID && chat.AdminID != userID {
		emitAudit(c, h.audit, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the admin can remove others"})
		return
	}

	participants, err := h.chatRepo.Participants(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	var target models.Participant
	for _, p := range participants {
		if p.UserID == targetID {
			target = p
			break
		}
	}
	if target.UserID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a participant"})
		return
	}

	if err := h.chatRepo.RemoveParticipant(c.Request.Context(), chatID, targetID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotParticipant) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not remove participant"})
		return
	}

	sysMsg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, target.UserID, target.Username,
		models.KindSystem, fmt.Sprintf("%s left the chat", target.Username))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record leave"})
		return
	}

	if err := h.router.Dispatch(events.NewMembership(chatID, false, target, &sysMsg)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not notify participants"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Participant removed")
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) requireParticipant(c *gin.Context, chatID, userID string) bool {
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

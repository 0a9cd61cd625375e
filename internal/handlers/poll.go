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
)

// PollHandler manages polls attached to chat messages. Votes broadcast the
// full authoritative tally, never deltas, so a re-applied event is harmless.
type PollHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	pollRepo    repositories.PollRepository
	router      *router.Router
}

// NewPollHandler builds a PollHandler.
func NewPollHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, pollRepo repositories.PollRepository, r *router.Router) *PollHandler {
	return &PollHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		pollRepo:    pollRepo,
		router:      r,
	}
}

// CreatePoll posts a poll message to the chat and stores the poll with its
// options. The carrier message is broadcast like any other message.
func (h *PollHandler) CreatePoll(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID, username := callerIdentity(c)

	var req struct {
		Question       string   `json:"question" binding:"required"`
		Options        []string `json:"options" binding:"required"`
		AllowsMultiple bool     `json:"allows_multiple"`
		ClientToken    string   `json:"client_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Options) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "poll needs at least two options"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, userID, username,
		models.KindMessage, fmt.Sprintf("📊 %s", req.Question))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store poll message"})
		return
	}

	poll, options, err := h.pollRepo.CreatePoll(c.Request.Context(), msg.ID, chatID, req.Question, req.AllowsMultiple, req.Options)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create poll"})
		return
	}

	if err := h.router.Dispatch(events.NewMessage(msg, req.ClientToken)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast poll"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "poll": poll, "options": options})
}

// Vote toggles the caller's vote on a poll option and broadcasts the
// resulting tally. Voting the same option again retracts the vote;
// single-choice polls drop any prior vote first.
func (h *PollHandler) Vote(c *gin.Context) {
	pollID := c.Param("poll_id")
	userID, _ := callerIdentity(c)

	var req struct {
		OptionID string `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poll, err := h.pollRepo.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrPollNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "poll not found"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), poll.ChatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	state, err := h.pollRepo.Vote(c.Request.Context(), pollID, req.OptionID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrOptionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to record vote"})
		return
	}

	if err := h.router.Dispatch(events.NewPollVoteUpdated(poll.ChatID, state, userID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to broadcast vote"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetState returns the current tally for a poll.
func (h *PollHandler) GetState(c *gin.Context) {
	pollID := c.Param("poll_id")
	userID, _ := callerIdentity(c)

	poll, err := h.pollRepo.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrPollNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "poll not found"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), poll.ChatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	state, err := h.pollRepo.State(c.Request.Context(), pollID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load poll state"})
		return
	}
	c.JSON(http.StatusOK, state)
}

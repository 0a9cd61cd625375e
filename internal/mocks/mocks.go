package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chatType models.ChatType, name, adminID string) (models.Chat, error) {
	args := m.Called(ctx, chatType, name, adminID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) Participants(ctx context.Context, chatID string) ([]models.Participant, error) {
	args := m.Called(ctx, chatID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipant(ctx context.Context, chatID, userID, username string) (models.Participant, error) {
	args := m.Called(ctx, chatID, userID, username)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID, senderID, senderName string, kind models.MessageKind, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, senderName, kind, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessage(ctx context.Context, messageID, senderID, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID, senderID string) (time.Time, error) {
	args := m.Called(ctx, messageID, senderID)
	var at time.Time
	if val := args.Get(0); val != nil {
		at = val.(time.Time)
	}
	return at, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageIDs []string, userID, username string, readAt time.Time) error {
	args := m.Called(ctx, messageIDs, userID, username, readAt)
	return args.Error(0)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) ToggleReaction(ctx context.Context, messageID, userID, username, emoji string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, username, emoji)
	var list []models.Reaction
	if val := args.Get(0); val != nil {
		list = val.([]models.Reaction)
	}
	return list, args.Error(1)
}

func (m *ReactionRepositoryMock) Reactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var list []models.Reaction
	if val := args.Get(0); val != nil {
		list = val.([]models.Reaction)
	}
	return list, args.Error(1)
}

type PollRepositoryMock struct {
	mock.Mock
}

func (m *PollRepositoryMock) CreatePoll(ctx context.Context, messageID, chatID, question string, allowsMultiple bool, options []string) (models.Poll, []models.PollOption, error) {
	args := m.Called(ctx, messageID, chatID, question, allowsMultiple, options)
	var poll models.Poll
	if val := args.Get(0); val != nil {
		poll = val.(models.Poll)
	}
	var opts []models.PollOption
	if val := args.Get(1); val != nil {
		opts = val.([]models.PollOption)
	}
	return poll, opts, args.Error(2)
}

func (m *PollRepositoryMock) GetPoll(ctx context.Context, pollID string) (models.Poll, error) {
	args := m.Called(ctx, pollID)
	var poll models.Poll
	if val := args.Get(0); val != nil {
		poll = val.(models.Poll)
	}
	return poll, args.Error(1)
}

func (m *PollRepositoryMock) Vote(ctx context.Context, pollID, optionID, userID string) (models.PollState, error) {
	args := m.Called(ctx, pollID, optionID, userID)
	var state models.PollState
	if val := args.Get(0); val != nil {
		state = val.(models.PollState)
	}
	return state, args.Error(1)
}

func (m *PollRepositoryMock) State(ctx context.Context, pollID string) (models.PollState, error) {
	args := m.Called(ctx, pollID)
	var state models.PollState
	if val := args.Get(0); val != nil {
		state = val.(models.PollState)
	}
	return state, args.Error(1)
}

var (
	_ repositories.ChatRepository     = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository  = (*MessageRepositoryMock)(nil)
	_ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
	_ repositories.PollRepository     = (*PollRepositoryMock)(nil)
)

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// ChatRepository defines interactions for chats and their membership.
type ChatRepository interface {
	CreateChat(ctx context.Context, chatType models.ChatType, name, adminID string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	Participants(ctx context.Context, chatID string) ([]models.Participant, error)
	AddParticipant(ctx context.Context, chatID, userID, username string) (models.Participant, error)
	RemoveParticipant(ctx context.Context, chatID, userID string) error
}

// ChatRepo is a sqlx-backed repository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat stores a new chat.
func (r *ChatRepo) CreateChat(ctx context.Context, chatType models.ChatType, name, adminID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (id, type, name, admin_id) VALUES ($1, $2, $3, $4)
         RETURNING id, type, name, admin_id, created_at`,
		uuid.NewString(), chatType, name, adminID).
		StructScan(&chat)
	return chat, err
}

// GetChat retrieves a single chat.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, type, name, admin_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns the chats the user participates in, with
// participants and the latest message, newest activity first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.type, c.name, c.admin_id, c.created_at
         FROM chats c
         JOIN chat_participants p ON p.chat_id = c.id
         WHERE p.user_id = $1
         ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		participants, err := r.Participants(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		summary := models.ChatSummary{Chat: chat, Participants: participants}

		var last models.Message
		err = r.db.GetContext(ctx, &last,
			`SELECT id, chat_id, sender_id, sender_name, kind,
                CASE WHEN deleted_at IS NULL THEN content ELSE '' END AS content,
                sent_at, edited_at, deleted_at
             FROM messages WHERE chat_id=$1 ORDER BY sent_at DESC LIMIT 1`, chat.ID)
		if err == nil {
			summary.LastMessage = &last
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// IsParticipant checks chat membership.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return count > 0, err
}

// Participants returns the chat's membership.
func (r *ChatRepo) Participants(ctx context.Context, chatID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants,
		`SELECT chat_id, user_id, username, joined_at FROM chat_participants
         WHERE chat_id=$1 ORDER BY joined_at ASC`, chatID)
	return participants, err
}

// AddParticipant adds a user to the chat; re-adding is a no-op returning
// the existing row.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID, username string) (models.Participant, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, username)
         VALUES ($1, $2, $3)
         ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID, username)
	if err != nil {
		return models.Participant{}, err
	}
	var participant models.Participant
	err = r.db.GetContext(ctx, &participant,
		`SELECT chat_id, user_id, username, joined_at FROM chat_participants
         WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return participant, err
}

// RemoveParticipant removes a user from the chat.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotParticipant
	}
	return nil
}

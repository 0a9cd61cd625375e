package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may modify a message")
)

// MessageRepository defines interactions for chat messages. The store mints
// message ids and the authoritative sent_at timestamp.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID, senderID, senderName string, kind models.MessageKind, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	// GetMessages returns up to limit messages older than before (zero
	// means newest), ordered by sent_at ascending, hydrated with read
	// receipts and reactions.
	GetMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error)
	UpdateMessage(ctx context.Context, messageID, senderID, content string) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, senderID string) (time.Time, error)
	MarkRead(ctx context.Context, messageIDs []string, userID, username string, readAt time.Time) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns the authoritative record.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID, senderID, senderName string, kind models.MessageKind, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, sender_name, kind, content)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, chat_id, sender_id, sender_name, kind, content, sent_at, edited_at, deleted_at`,
		uuid.NewString(), chatID, senderID, senderName, kind, content).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, chat_id, sender_id, sender_name, kind, content, sent_at, edited_at, deleted_at
         FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetMessages pages backwards through history by sent_at cursor.
func (r *MessageRepo) GetMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Deleted rows keep their place in history but never ship content.
	query := `SELECT id, chat_id, sender_id, sender_name, kind,
            CASE WHEN deleted_at IS NULL THEN content ELSE '' END AS content,
            sent_at, edited_at, deleted_at
        FROM messages WHERE chat_id=$1`
	args := []any{chatID}
	if !before.IsZero() {
		query += ` AND sent_at < $2`
		args = append(args, before)
	}
	query += ` ORDER BY sent_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}

	// Newest page fetched descending; flip to the ascending order clients
	// store.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepo) hydrate(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		index[m.ID] = i
	}

	query, args, err := sqlx.In(
		`SELECT message_id, user_id, username, read_at FROM message_reads WHERE message_id IN (?)`, ids)
	if err != nil {
		return err
	}
	var reads []models.ReadReceipt
	if err := r.db.SelectContext(ctx, &reads, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, receipt := range reads {
		i := index[receipt.MessageID]
		msgs[i].ReadBy = append(msgs[i].ReadBy, receipt)
	}

	query, args, err = sqlx.In(
		`SELECT id, message_id, user_id, username, emoji, created_at FROM message_reactions
         WHERE message_id IN (?) ORDER BY created_at ASC`, ids)
	if err != nil {
		return err
	}
	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, reaction := range reactions {
		i := index[reaction.MessageID]
		msgs[i].Reactions = append(msgs[i].Reactions, reaction)
	}
	return nil
}

// UpdateMessage edits a message in place; only the sender may edit.
func (r *MessageRepo) UpdateMessage(ctx context.Context, messageID, senderID, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$1, edited_at=NOW()
         WHERE id=$2 AND sender_id=$3 AND deleted_at IS NULL
         RETURNING id, chat_id, sender_id, sender_name, kind, content, sent_at, edited_at, deleted_at`,
		content, messageID, senderID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteMessage tombstones a message: the row stays so surrounding
// ordering and read bookkeeping are untouched.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID, senderID string) (time.Time, error) {
	var deletedAt time.Time
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET deleted_at=NOW()
         WHERE id=$1 AND sender_id=$2 AND deleted_at IS NULL
         RETURNING deleted_at`,
		messageID, senderID).
		Scan(&deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrMessageNotFound
	}
	return deletedAt, err
}

// MarkRead inserts read receipts for the user, skipping any that already
// exist so the bulk operation is idempotent.
func (r *MessageRepo) MarkRead(ctx context.Context, messageIDs []string, userID, username string, readAt time.Time) error {
	for _, messageID := range messageIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO message_reads (message_id, user_id, username, read_at)
             VALUES ($1, $2, $3, $4)
             ON CONFLICT (message_id, user_id) DO NOTHING`,
			messageID, userID, username, readAt)
		if err != nil {
			return err
		}
	}
	return nil
}

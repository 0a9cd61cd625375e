package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

// ReactionRepository toggles reactions and reports the authoritative list.
type ReactionRepository interface {
	// ToggleReaction adds the (message, user, emoji) reaction if absent,
	// removes it otherwise, and returns the message's full reaction list
	// after the change.
	ToggleReaction(ctx context.Context, messageID, userID, username, emoji string) ([]models.Reaction, error)
	Reactions(ctx context.Context, messageID string) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx-backed repository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// ToggleReaction flips presence of the reaction and returns the full list.
func (r *ReactionRepo) ToggleReaction(ctx context.Context, messageID, userID, username, emoji string) ([]models.Reaction, error) {
	var existing string
	err := r.db.GetContext(ctx, &existing,
		`SELECT id FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	switch {
	case err == nil:
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM message_reactions WHERE id=$1`, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO message_reactions (id, message_id, user_id, username, emoji)
             VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), messageID, userID, username, emoji); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return r.Reactions(ctx, messageID)
}

// Reactions returns the full reaction list for a message.
func (r *ReactionRepo) Reactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	reactions := []models.Reaction{}
	err := r.db.SelectContext(ctx, &reactions,
		`SELECT id, message_id, user_id, username, emoji, created_at
         FROM message_reactions WHERE message_id=$1 ORDER BY created_at ASC`, messageID)
	return reactions, err
}

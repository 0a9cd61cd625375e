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
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("poll option not found")
)

// PollRepository stores polls and vote toggles.
type PollRepository interface {
	CreatePoll(ctx context.Context, messageID, chatID, question string, allowsMultiple bool, options []string) (models.Poll, []models.PollOption, error)
	GetPoll(ctx context.Context, pollID string) (models.Poll, error)
	// Vote toggles the user's vote on the option. Single-choice polls
	// drop the user's previous vote first. The returned state is the
	// authoritative tally after the change.
	Vote(ctx context.Context, pollID, optionID, userID string) (models.PollState, error)
	State(ctx context.Context, pollID string) (models.PollState, error)
}

// PollRepo is a sqlx-backed repository.
type PollRepo struct {
	db *sqlx.DB
}

// NewPollRepo constructs PollRepo.
func NewPollRepo(db *sqlx.DB) *PollRepo {
	return &PollRepo{db: db}
}

// CreatePoll stores a poll with its options.
func (r *PollRepo) CreatePoll(ctx context.Context, messageID, chatID, question string, allowsMultiple bool, options []string) (models.Poll, []models.PollOption, error) {
	var poll models.Poll
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO polls (id, message_id, chat_id, question, allows_multiple)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, message_id, chat_id, question, allows_multiple, created_at`,
		uuid.NewString(), messageID, chatID, question, allowsMultiple).
		StructScan(&poll)
	if err != nil {
		return models.Poll{}, nil, err
	}

	created := make([]models.PollOption, 0, len(options))
	for _, text := range options {
		option := models.PollOption{ID: uuid.NewString(), PollID: poll.ID, Text: text}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO poll_options (id, poll_id, text) VALUES ($1, $2, $3)`,
			option.ID, option.PollID, option.Text); err != nil {
			return models.Poll{}, nil, err
		}
		created = append(created, option)
	}
	return poll, created, nil
}

// GetPoll retrieves a poll.
func (r *PollRepo) GetPoll(ctx context.Context, pollID string) (models.Poll, error) {
	var poll models.Poll
	err := r.db.GetContext(ctx, &poll,
		`SELECT id, message_id, chat_id, question, allows_multiple, created_at FROM polls WHERE id=$1`, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, ErrPollNotFound
	}
	return poll, err
}

// Vote toggles the user's vote and returns the new tallies.
func (r *PollRepo) Vote(ctx context.Context, pollID, optionID, userID string) (models.PollState, error) {
	poll, err := r.GetPoll(ctx, pollID)
	if err != nil {
		return models.PollState{}, err
	}

	var optionExists int
	if err := r.db.GetContext(ctx, &optionExists,
		`SELECT COUNT(1) FROM poll_options WHERE id=$1 AND poll_id=$2`, optionID, pollID); err != nil {
		return models.PollState{}, err
	}
	if optionExists == 0 {
		return models.PollState{}, ErrOptionNotFound
	}

	var existing string
	err = r.db.GetContext(ctx, &existing,
		`SELECT id FROM poll_votes WHERE poll_id=$1 AND option_id=$2 AND user_id=$3`,
		pollID, optionID, userID)
	switch {
	case err == nil:
		// Voting the same option again retracts the vote.
		if _, err := r.db.ExecContext(ctx, `DELETE FROM poll_votes WHERE id=$1`, existing); err != nil {
			return models.PollState{}, err
		}
	case errors.Is(err, sql.ErrNoRows):
		if !poll.AllowsMultiple {
			if _, err := r.db.ExecContext(ctx,
				`DELETE FROM poll_votes WHERE poll_id=$1 AND user_id=$2`, pollID, userID); err != nil {
				return models.PollState{}, err
			}
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO poll_votes (id, poll_id, option_id, user_id) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), pollID, optionID, userID); err != nil {
			return models.PollState{}, err
		}
	default:
		return models.PollState{}, err
	}

	return r.State(ctx, pollID)
}

// State returns the authoritative tallies for a poll.
func (r *PollRepo) State(ctx context.Context, pollID string) (models.PollState, error) {
	poll, err := r.GetPoll(ctx, pollID)
	if err != nil {
		return models.PollState{}, err
	}

	options := []models.PollOption{}
	err = r.db.SelectContext(ctx, &options,
		`SELECT o.id, o.poll_id, o.text, COUNT(v.id) AS votes
         FROM poll_options o
         LEFT JOIN poll_votes v ON v.option_id = o.id
         WHERE o.poll_id=$1
         GROUP BY o.id, o.poll_id, o.text
         ORDER BY o.id`, pollID)
	if err != nil {
		return models.PollState{}, err
	}

	total := 0
	for _, option := range options {
		total += option.Votes
	}
	return models.PollState{
		PollID:     poll.ID,
		MessageID:  poll.MessageID,
		Options:    options,
		TotalVotes: total,
	}, nil
}

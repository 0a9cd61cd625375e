package models

import "time"

// Poll is attached to the message that carries it.
type Poll struct {
	ID             string    `db:"id" json:"id"`
	MessageID      string    `db:"message_id" json:"message_id"`
	ChatID         string    `db:"chat_id" json:"chat_id"`
	Question       string    `db:"question" json:"question"`
	AllowsMultiple bool      `db:"allows_multiple" json:"allows_multiple"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PollOption is one selectable answer with its current tally.
type PollOption struct {
	ID     string `db:"id" json:"id"`
	PollID string `db:"poll_id" json:"poll_id,omitempty"`
	Text   string `db:"text" json:"text"`
	Votes  int    `db:"votes" json:"votes"`
}

// PollState is the authoritative tally snapshot returned by vote mutations
// and fanned out to peers.
type PollState struct {
	PollID     string       `json:"poll_id"`
	MessageID  string       `json:"message_id"`
	Options    []PollOption `json:"options"`
	TotalVotes int          `json:"total_votes"`
}

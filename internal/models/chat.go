package models

import "time"

// ChatType distinguishes direct conversations from groups.
type ChatType string

const (
	ChatIndividual ChatType = "INDIVIDUAL"
	ChatGroup      ChatType = "GROUP"
)

// Chat represents a conversation between two or more users.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	Type      ChatType  `db:"type" json:"type"`
	Name      string    `db:"name" json:"name,omitempty"`
	AdminID   string    `db:"admin_id" json:"admin_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Participant is a user's membership in a chat.
type Participant struct {
	ChatID   string    `db:"chat_id" json:"chat_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ChatSummary is the API-friendly view of a chat returned by list endpoints.
type ChatSummary struct {
	Chat
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
}

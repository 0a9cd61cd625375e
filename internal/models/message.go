package models

import "time"

// MessageKind separates user messages from membership system messages.
type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindSystem  MessageKind = "system"
)

// Message represents a chat message. IDs are minted by the persistence
// layer; SentAt is the authoritative ordering timestamp.
type Message struct {
	ID         string      `db:"id" json:"id"`
	ChatID     string      `db:"chat_id" json:"chat_id"`
	SenderID   string      `db:"sender_id" json:"sender_id"`
	SenderName string      `db:"sender_name" json:"sender_name,omitempty"`
	Kind       MessageKind `db:"kind" json:"kind"`
	Content    string      `db:"content" json:"content"`
	SentAt     time.Time   `db:"sent_at" json:"sent_at"`
	EditedAt   *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt  *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`

	ReadBy    []ReadReceipt `db:"-" json:"read_by,omitempty"`
	Reactions []Reaction    `db:"-" json:"reactions,omitempty"`
}

// Deleted reports whether the message has been soft deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	MessageID string    `db:"message_id" json:"message_id,omitempty"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// Reaction is one user's emoji reaction on a message.
type Reaction struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id,omitempty"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package events

import (
	"time"

	"chat-sync/internal/models"
)

// Mutation frame payloads. Clients relay the authoritative record returned
// by the REST call, never locally minted state; the router re-wraps these
// into events with the same stable ids the REST path produces, so a peer
// reached by both paths applies the fact once.

type SendMessageData struct {
	RoomID      string         `json:"room_id"`
	Message     models.Message `json:"message"`
	ClientToken string         `json:"client_token,omitempty"`
}

type TypingData struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type MessageUpdatedData struct {
	RoomID  string         `json:"room_id"`
	Message models.Message `json:"message"`
}

type MessageDeletedData struct {
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type MessagesReadData struct {
	RoomID     string    `json:"room_id"`
	MessageIDs []string  `json:"message_ids"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	ReadAt     time.Time `json:"read_at"`
}

type MembershipData struct {
	RoomID  string             `json:"room_id"`
	User    models.Participant `json:"user"`
	Message *models.Message    `json:"message,omitempty"`
}

type PollVoteData struct {
	RoomID  string           `json:"room_id"`
	State   models.PollState `json:"state"`
	VoterID string           `json:"voter_id"`
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat-sync/internal/models"
)

// Type names mirror the wire protocol consumed by clients.
type Type string

const (
	TypeMessage         Type = "message"
	TypeMessageUpdated  Type = "message_updated"
	TypeMessageDeleted  Type = "message_deleted"
	TypeMessagesRead    Type = "messages_read"
	TypeTyping          Type = "typing"
	TypeStopTyping      Type = "stop_typing"
	TypeUserJoined      Type = "user_joined"
	TypeUserLeft        Type = "user_left"
	TypeAddedToChat     Type = "added_to_chat"
	TypeRemovedFromChat Type = "removed_from_chat"
	TypeReactionChanged Type = "reaction_changed"
	TypePollVoteUpdated Type = "poll_vote_updated"
)

var ErrUnknownType = errors.New("unknown event type")

// Known reports whether t is a recognized event type.
func Known(t Type) bool {
	switch t {
	case TypeMessage, TypeMessageUpdated, TypeMessageDeleted, TypeMessagesRead,
		TypeTyping, TypeStopTyping, TypeUserJoined, TypeUserLeft,
		TypeAddedToChat, TypeRemovedFromChat, TypeReactionChanged, TypePollVoteUpdated:
		return true
	}
	return false
}

// UserRoom returns the personal room id for out-of-band user notifications.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Event is an immutable fact fanned out to every member of a room. ID is
// stable per fact so receivers can deduplicate re-deliveries. Data holds
// exactly one payload variant matching Type.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	RoomID     string    `json:"roomId"`
	ServerTime time.Time `json:"ts"`
	Data       any       `json:"data"`

	// OriginConn is the connection the event came in on, if any. It is
	// used for typing-echo suppression and never serialized.
	OriginConn string `json:"-"`
}

// Payload variants, one per Type.

type MessagePayload struct {
	Message models.Message `json:"message"`
	// ClientToken is the sender-assigned correlation token used to
	// reconcile optimistic local entries with the confirmed record.
	ClientToken string `json:"client_token,omitempty"`
}

type MessageUpdatedPayload struct {
	Message models.Message `json:"message"`
}

type MessageDeletedPayload struct {
	MessageID string    `json:"message_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type MessagesReadPayload struct {
	MessageIDs []string  `json:"message_ids"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	ReadAt     time.Time `json:"read_at"`
}

type TypingPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type MembershipPayload struct {
	User models.Participant `json:"user"`
	// Message is the system message recorded for the join/leave, shown
	// inline in the conversation.
	Message *models.Message `json:"message,omitempty"`
}

type ChatNotificationPayload struct {
	ChatID string             `json:"chat_id"`
	User   models.Participant `json:"user"`
}

type ReactionChangedPayload struct {
	MessageID string            `json:"message_id"`
	Reactions []models.Reaction `json:"reactions"`
}

type PollVotePayload struct {
	State   models.PollState `json:"state"`
	VoterID string           `json:"voter_id"`
}

type envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	RoomID     string          `json:"roomId"`
	ServerTime time.Time       `json:"ts"`
	Data       json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the payload into the variant matching Type so
// consumers can switch on concrete payload structs.
func (e *Event) UnmarshalJSON(raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	e.ID = env.ID
	e.Type = env.Type
	e.RoomID = env.RoomID
	e.ServerTime = env.ServerTime

	var data any
	switch env.Type {
	case TypeMessage:
		data = &MessagePayload{}
	case TypeMessageUpdated:
		data = &MessageUpdatedPayload{}
	case TypeMessageDeleted:
		data = &MessageDeletedPayload{}
	case TypeMessagesRead:
		data = &MessagesReadPayload{}
	case TypeTyping, TypeStopTyping:
		data = &TypingPayload{}
	case TypeUserJoined, TypeUserLeft:
		data = &MembershipPayload{}
	case TypeAddedToChat, TypeRemovedFromChat:
		data = &ChatNotificationPayload{}
	case TypeReactionChanged:
		data = &ReactionChangedPayload{}
	case TypePollVoteUpdated:
		data = &PollVotePayload{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	e.Data = data
	return nil
}

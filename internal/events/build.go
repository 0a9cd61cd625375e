package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/models"
)

// Constructors assign stable event ids so that re-applying a re-delivered
// event is a no-op on the receiving side. Message-scoped events derive the
// id from the message id; snapshot events (reactions, poll tallies) get a
// fresh id because applying the snapshot twice is already idempotent.

func NewMessage(msg models.Message, clientToken string) *Event {
	return &Event{
		ID:         "message:" + msg.ID,
		Type:       TypeMessage,
		RoomID:     msg.ChatID,
		ServerTime: msg.SentAt,
		Data:       &MessagePayload{Message: msg, ClientToken: clientToken},
	}
}

func NewMessageUpdated(msg models.Message) *Event {
	id := "message_updated:" + msg.ID
	if msg.EditedAt != nil {
		id = fmt.Sprintf("%s:%d", id, msg.EditedAt.UnixNano())
	}
	return &Event{
		ID:         id,
		Type:       TypeMessageUpdated,
		RoomID:     msg.ChatID,
		ServerTime: time.Now().UTC(),
		Data:       &MessageUpdatedPayload{Message: msg},
	}
}

func NewMessageDeleted(chatID, messageID string, deletedAt time.Time) *Event {
	return &Event{
		ID:         "message_deleted:" + messageID,
		Type:       TypeMessageDeleted,
		RoomID:     chatID,
		ServerTime: deletedAt,
		Data:       &MessageDeletedPayload{MessageID: messageID, DeletedAt: deletedAt},
	}
}

func NewMessagesRead(chatID string, messageIDs []string, userID, username string, readAt time.Time) *Event {
	id := fmt.Sprintf("messages_read:%s:%s:%d", chatID, userID, readAt.UnixNano())
	return &Event{
		ID:         id,
		Type:       TypeMessagesRead,
		RoomID:     chatID,
		ServerTime: readAt,
		Data: &MessagesReadPayload{
			MessageIDs: messageIDs,
			UserID:     userID,
			Username:   username,
			ReadAt:     readAt,
		},
	}
}

func NewTyping(chatID, userID, username string, typing bool) *Event {
	t := TypeTyping
	if !typing {
		t = TypeStopTyping
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		RoomID:     chatID,
		ServerTime: time.Now().UTC(),
		Data:       &TypingPayload{UserID: userID, Username: username},
	}
}

func NewMembership(chatID string, joined bool, user models.Participant, sysMsg *models.Message) *Event {
	t := TypeUserJoined
	verb := "joined"
	if !joined {
		t = TypeUserLeft
		verb = "left"
	}
	return &Event{
		ID:         fmt.Sprintf("%s:%s:%s", verb, chatID, user.UserID),
		Type:       t,
		RoomID:     chatID,
		ServerTime: time.Now().UTC(),
		Data:       &MembershipPayload{User: user, Message: sysMsg},
	}
}

func NewChatNotification(chatID string, added bool, user models.Participant) *Event {
	t := TypeAddedToChat
	verb := "added"
	if !added {
		t = TypeRemovedFromChat
		verb = "removed"
	}
	return &Event{
		ID:         fmt.Sprintf("%s:%s:%s", verb, chatID, user.UserID),
		Type:       t,
		RoomID:     UserRoom(user.UserID),
		ServerTime: time.Now().UTC(),
		Data:       &ChatNotificationPayload{ChatID: chatID, User: user},
	}
}

func NewReactionChanged(chatID, messageID string, reactions []models.Reaction) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       TypeReactionChanged,
		RoomID:     chatID,
		ServerTime: time.Now().UTC(),
		Data:       &ReactionChangedPayload{MessageID: messageID, Reactions: reactions},
	}
}

func NewPollVoteUpdated(chatID string, state models.PollState, voterID string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       TypePollVoteUpdated,
		RoomID:     chatID,
		ServerTime: time.Now().UTC(),
		Data:       &PollVotePayload{State: state, VoterID: voterID},
	}
}

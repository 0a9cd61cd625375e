package events

import (
	"encoding/json"
	"fmt"
)

// Action is a client->server frame name.
type Action string

const (
	ActionRegisterUser    Action = "register_user"
	ActionJoinChat        Action = "join_chat"
	ActionLeaveChat       Action = "leave_chat"
	ActionSendMessage     Action = "send_message"
	ActionTyping          Action = "typing"
	ActionStopTyping      Action = "stop_typing"
	ActionMessageUpdated  Action = "message_updated"
	ActionMessageDeleted  Action = "message_deleted"
	ActionMessagesRead    Action = "messages_read"
	ActionUserJoined      Action = "user_joined"
	ActionUserLeft        Action = "user_left"
	ActionPollVoteUpdated Action = "poll_vote_updated"
)

// Frame is what clients write on the socket (or POST on the fallback
// transport). Data is decoded per action by the frame handler.
type Frame struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a frame, for client-side senders.
func NewFrame(action Action, data any) (Frame, error) {
	if data == nil {
		return Frame{Action: action}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", action, err)
	}
	return Frame{Action: action, Data: raw}, nil
}

// Frame payloads for room management; mutation frames reuse the event
// payload structs above since the client relays the authoritative record
// it got back from the REST call.

type RegisterUserData struct {
	UserID string `json:"user_id"`
}

type RoomData struct {
	RoomID string `json:"room_id"`
}

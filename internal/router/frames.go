package router

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-sync/internal/events"
)

// HandleFrame processes one client->server frame from the given connection.
// Malformed frames return an error for the transport to log; they never
// tear down unrelated state.
func (r *Router) HandleFrame(connID string, frame events.Frame) error {
	switch frame.Action {
	case events.ActionRegisterUser:
		var data events.RegisterUserData
		if err := decode(frame, &data); err != nil {
			return err
		}
		return r.registry.Register(connID, data.UserID)

	case events.ActionJoinChat:
		var data events.RoomData
		if err := decode(frame, &data); err != nil {
			return err
		}
		r.registry.JoinRoom(connID, data.RoomID)
		return nil

	case events.ActionLeaveChat:
		var data events.RoomData
		if err := decode(frame, &data); err != nil {
			return err
		}
		r.registry.LeaveRoom(connID, data.RoomID)
		return nil

	case events.ActionSendMessage:
		var data events.SendMessageData
		if err := decode(frame, &data); err != nil {
			return err
		}
		ev := events.NewMessage(data.Message, data.ClientToken)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionTyping, events.ActionStopTyping:
		var data events.TypingData
		if err := decode(frame, &data); err != nil {
			return err
		}
		typing := frame.Action == events.ActionTyping
		if typing {
			r.typing.Start(data.RoomID, data.UserID, data.Username)
		} else {
			r.typing.Stop(data.RoomID, data.UserID)
		}
		ev := events.NewTyping(data.RoomID, data.UserID, data.Username, typing)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionMessageUpdated:
		var data events.MessageUpdatedData
		if err := decode(frame, &data); err != nil {
			return err
		}
		ev := events.NewMessageUpdated(data.Message)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionMessageDeleted:
		var data events.MessageDeletedData
		if err := decode(frame, &data); err != nil {
			return err
		}
		ev := events.NewMessageDeleted(data.RoomID, data.MessageID, data.DeletedAt)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionMessagesRead:
		var data events.MessagesReadData
		if err := decode(frame, &data); err != nil {
			return err
		}
		readAt := data.ReadAt
		if readAt.IsZero() {
			readAt = time.Now().UTC()
		}
		ev := events.NewMessagesRead(data.RoomID, data.MessageIDs, data.UserID, data.Username, readAt)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionUserJoined, events.ActionUserLeft:
		var data events.MembershipData
		if err := decode(frame, &data); err != nil {
			return err
		}
		joined := frame.Action == events.ActionUserJoined
		ev := events.NewMembership(data.RoomID, joined, data.User, data.Message)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	case events.ActionPollVoteUpdated:
		var data events.PollVoteData
		if err := decode(frame, &data); err != nil {
			return err
		}
		ev := events.NewPollVoteUpdated(data.RoomID, data.State, data.VoterID)
		ev.OriginConn = connID
		return r.Dispatch(ev)

	default:
		return fmt.Errorf("unknown frame action %q", frame.Action)
	}
}

func decode(frame events.Frame, into any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s frame has no data", frame.Action)
	}
	if err := json.Unmarshal(frame.Data, into); err != nil {
		return fmt.Errorf("decode %s frame: %w", frame.Action, err)
	}
	return nil
}

package ws

import (
	"github.com/gorilla/websocket"

	"chat-sync/internal/events"
)

func readFrame(sock *websocket.Conn) (events.Frame, error) {
	var frame events.Frame
	if err := sock.ReadJSON(&frame); err != nil {
		return events.Frame{}, err
	}
	return frame, nil
}

package client

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-sync/internal/events"
)

// WSDialer opens websocket streams against the server's /ws endpoint.
type WSDialer struct {
	URL   string
	Token string
}

// Dial performs the handshake and returns the live stream.
func (d *WSDialer) Dial(ctx context.Context) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.Token)
	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	return &wsStream{sock: sock}, nil
}

type wsStream struct {
	sock *websocket.Conn
}

func (s *wsStream) ReadEvent() (*events.Event, error) {
	var ev events.Event
	if err := s.sock.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *wsStream) WriteFrame(frame events.Frame) error {
	return s.sock.WriteJSON(frame)
}

func (s *wsStream) Close() error {
	return s.sock.Close()
}

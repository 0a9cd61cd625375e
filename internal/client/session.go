package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/events"
	"chat-sync/internal/models"
)

// Session composes the REST client, the reconnection controller, and one
// ConversationView per open chat into a converging local replica. All
// mutations go through REST; the stream only carries confirmations, so a
// flaky socket can never lose writes.
type Session struct {
	rest       *RestClient
	controller *Controller
	userID     string
	username   string

	mu    sync.Mutex
	views map[string]*ConversationView
	chats []models.ChatSummary

	// unflushedReads holds read receipts reported while offline, replayed
	// on the next resync. The server endpoint is idempotent.
	unflushedReads map[string][]string
}

// SessionConfig carries the session's identity and endpoints.
type SessionConfig struct {
	BaseURL string
	WSURL   string
	Token   string
	UserID  string

	Username string
}

// NewSession builds a Session. Start must be called to go live.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		rest:           NewRestClient(cfg.BaseURL, cfg.Token),
		userID:         cfg.UserID,
		username:       cfg.Username,
		views:          make(map[string]*ConversationView),
		unflushedReads: make(map[string][]string),
	}
	s.controller = NewController(ControllerConfig{
		Dialer:  &WSDialer{URL: cfg.WSURL, Token: cfg.Token},
		UserID:  cfg.UserID,
		OnEvent: s.apply,
		Resync:  s.resync,
	})
	return s
}

// Start connects the event stream and begins syncing.
func (s *Session) Start(ctx context.Context) {
	s.controller.Start(ctx)
}

// Stop disconnects. The local views stay readable.
func (s *Session) Stop() {
	s.controller.Stop()
}

// State exposes the connection lifecycle state for status indicators.
func (s *Session) State() State {
	return s.controller.State()
}

// Synced reports whether the local replica is known current. While false,
// views stay readable but may be stale.
func (s *Session) Synced() bool {
	return s.controller.Synced()
}

// Chats returns the last synced chat list.
func (s *Session) Chats() []models.ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatSummary, len(s.chats))
	copy(out, s.chats)
	return out
}

// OpenChat subscribes to a chat's room and backfills its newest page. The
// returned view updates in place as events arrive.
func (s *Session) OpenChat(ctx context.Context, chatID string) (*ConversationView, error) {
	view := s.viewFor(chatID)
	if err := s.controller.JoinRoom(chatID); err != nil {
		return nil, err
	}
	msgs, err := s.rest.GetMessages(ctx, chatID, time.Time{}, 50)
	if err != nil {
		return nil, err
	}
	view.Backfill(msgs)
	return view, nil
}

// CloseChat drops the room subscription but keeps the view cached.
func (s *Session) CloseChat(chatID string) error {
	return s.controller.LeaveRoom(chatID)
}

// LoadOlder pages further back in a chat's history.
func (s *Session) LoadOlder(ctx context.Context, chatID string, limit int) error {
	view := s.viewFor(chatID)
	cursor := view.OldestCursor()
	if cursor.IsZero() {
		return nil
	}
	msgs, err := s.rest.GetMessages(ctx, chatID, cursor, limit)
	if err != nil {
		return err
	}
	view.Backfill(msgs)
	return nil
}

// Send posts a message. The view shows it optimistically right away and is
// reconciled from the POST response itself, so a dropped stream echo can
// never strand the provisional entry. A failed write rolls the entry back
// and returns the error for the caller to retry.
func (s *Session) Send(ctx context.Context, chatID, content string) (models.Message, error) {
	token := uuid.NewString()
	view := s.viewFor(chatID)
	view.AddOptimistic(token, models.Message{
		ID:         "pending:" + token,
		ChatID:     chatID,
		SenderID:   s.userID,
		SenderName: s.username,
		Kind:       models.KindMessage,
		Content:    content,
		SentAt:     time.Now().UTC(),
	})
	msg, err := s.rest.SendMessage(ctx, chatID, content, token)
	if err != nil {
		view.RemoveOptimistic(token)
		return models.Message{}, err
	}
	view.ConfirmOptimistic(token, msg)
	return msg, nil
}

// MarkRead reports messages as read. Failures queue the batch for replay
// on the next resync.
func (s *Session) MarkRead(ctx context.Context, chatID string, messageIDs []string) error {
	if err := s.rest.MarkRead(ctx, chatID, messageIDs); err != nil {
		s.mu.Lock()
		s.unflushedReads[chatID] = append(s.unflushedReads[chatID], messageIDs...)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Typing signals that the user started or stopped typing in a chat. Typing
// is fire-and-forget; a dropped frame only costs an indicator.
func (s *Session) Typing(chatID string, typing bool) error {
	action := events.ActionTyping
	if !typing {
		action = events.ActionStopTyping
	}
	frame, err := events.NewFrame(action, events.TypingData{
		RoomID:   chatID,
		UserID:   s.userID,
		Username: s.username,
	})
	if err != nil {
		return err
	}
	return s.controller.SendFrame(frame)
}

// apply routes an incoming event to the view that owns its room. Personal
// room notifications adjust the chat list instead.
func (s *Session) apply(ev *events.Event) {
	if ev.RoomID == events.UserRoom(s.userID) {
		s.applyNotification(ev)
		return
	}
	s.mu.Lock()
	view, ok := s.views[ev.RoomID]
	s.mu.Unlock()
	if !ok {
		return
	}
	view.Apply(ev)
}

func (s *Session) applyNotification(ev *events.Event) {
	data, ok := ev.Data.(*events.ChatNotificationPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case events.TypeAddedToChat:
		// Subscribe right away so the new chat's events stream in, and
		// pull the refreshed chat list in the background.
		go func() {
			if err := s.controller.JoinRoom(data.ChatID); err != nil {
				log.Printf("join after invite failed: %v", err)
			}
			s.refreshChats(context.Background())
		}()
	case events.TypeRemovedFromChat:
		for i, chat := range s.chats {
			if chat.ID == data.ChatID {
				s.chats = append(s.chats[:i], s.chats[i+1:]...)
				break
			}
		}
		delete(s.views, data.ChatID)
	}
}

// refreshChats re-pulls the chat list so membership changes show up
// without waiting for a reconnect.
func (s *Session) refreshChats(ctx context.Context) {
	chats, err := s.rest.ListChats(ctx)
	if err != nil {
		log.Printf("chat list refresh failed: %v", err)
		return
	}
	s.mu.Lock()
	s.chats = chats
	s.mu.Unlock()
}

// resync runs after every (re)connect: refresh the chat list, backfill
// every open view from its newest gap, and flush queued read receipts.
func (s *Session) resync(ctx context.Context) error {
	chats, err := s.rest.ListChats(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.chats = chats
	views := make([]*ConversationView, 0, len(s.views))
	for _, view := range s.views {
		views = append(views, view)
	}
	reads := s.unflushedReads
	s.unflushedReads = make(map[string][]string)
	s.mu.Unlock()

	for _, view := range views {
		msgs, err := s.rest.GetMessages(ctx, view.ChatID(), time.Time{}, 50)
		if err != nil {
			return err
		}
		view.Backfill(msgs)
	}

	for chatID, messageIDs := range reads {
		if err := s.rest.MarkRead(ctx, chatID, messageIDs); err != nil {
			s.mu.Lock()
			s.unflushedReads[chatID] = append(s.unflushedReads[chatID], messageIDs...)
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

func (s *Session) viewFor(chatID string) *ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[chatID]
	if !ok {
		view = NewConversationView(chatID)
		s.views[chatID] = view
	}
	return view
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/events"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/registry"
	"chat-sync/internal/router"
)

// recorderConn captures everything the router fans out during a request.
type recorderConn struct {
	id   string
	sent []*events.Event
}

func (c *recorderConn) ID() string                  { return c.id }
func (c *recorderConn) Send(ev *events.Event) error { c.sent = append(c.sent, ev); return nil }
func (c *recorderConn) Close() error                { return nil }

// newTestRouter builds a live router with one connection subscribed to the
// given rooms, so tests can assert what actually got broadcast.
func newTestRouter(t *testing.T, userID string, rooms ...string) (*router.Router, *recorderConn) {
	t.Helper()
	reg := registry.NewRegistry()
	r := router.NewRouter(reg, time.Minute)
	conn := &recorderConn{id: "test-conn"}
	r.HandleConnect(conn)
	require.NoError(t, r.Register(conn.id, userID))
	for _, roomID := range rooms {
		reg.JoinRoom(conn.id, roomID)
	}
	return r, conn
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Set("username", "alice")
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats", handler.CreateChat)
	r.POST("/chats/:chat_id/participants", handler.AddParticipant)
	r.DELETE("/chats/:chat_id/participants/:user_id", handler.RemoveParticipant)
	return r
}

func TestListChatsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	eventRouter, _ := newTestRouter(t, "u1")
	handler := NewChatHandler(chatRepo, nil, eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("ListChatsForUser", mock.Anything, "u1").
		Return([]models.ChatSummary{{Chat: models.Chat{ID: "c1", Type: models.ChatGroup}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.ChatSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["chats"], 1)
	chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	eventRouter, _ := newTestRouter(t, "u1")
	handler := NewChatHandler(chatRepo, nil, eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("ListChatsForUser", mock.Anything, "u1").
		Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestCreateChatNotifiesParticipants(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	// The added participant is online as u2 and should hear about the chat
	// in their personal room.
	eventRouter, conn := newTestRouter(t, "u2")
	handler := NewChatHandler(chatRepo, nil, eventRouter, nil)
	r := setupChatRouter(handler)

	chat := models.Chat{ID: "c1", Type: models.ChatGroup, Name: "team", AdminID: "u1"}
	chatRepo.On("CreateChat", mock.Anything, models.ChatGroup, "team", "u1").Return(chat, nil).Once()
	chatRepo.On("AddParticipant", mock.Anything, "c1", "u1", "alice").
		Return(models.Participant{ChatID: "c1", UserID: "u1", Username: "alice"}, nil).Once()
	chatRepo.On("AddParticipant", mock.Anything, "c1", "u2", "bob").
		Return(models.Participant{ChatID: "c1", UserID: "u2", Username: "bob"}, nil).Once()

	body := bytes.NewBufferString(`{"type":"GROUP","name":"team","participants":[{"user_id":"u2","username":"bob"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/chats", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)

	var gotAdded bool
	for _, ev := range conn.sent {
		if ev.Type == events.TypeAddedToChat {
			gotAdded = true
		}
	}
	assert.True(t, gotAdded, "added participant should hear added_to_chat, got %v", conn.sent)
}

func TestCreateChatInvalidType(t *testing.T) {
	eventRouter, _ := newTestRouter(t, "u1")
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, eventRouter, nil)
	r := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"type":"BROADCAST"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddParticipantRecordsSystemMessage(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	eventRouter, conn := newTestRouter(t, "u1", "c1")
	handler := NewChatHandler(chatRepo, messageRepo, eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(true, nil).Once()
	chatRepo.On("AddParticipant", mock.Anything, "c1", "u3", "carol").
		Return(models.Participant{ChatID: "c1", UserID: "u3", Username: "carol"}, nil).Once()
	sysMsg := models.Message{ID: "s1", ChatID: "c1", SenderID: "u3", Kind: models.KindSystem, Content: "carol joined the chat"}
	messageRepo.On("CreateMessage", mock.Anything, "c1", "u3", "carol", models.KindSystem, "carol joined the chat").
		Return(sysMsg, nil).Once()

	body := bytes.NewBufferString(`{"user_id":"u3","username":"carol"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/c1/participants", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)

	require.NotEmpty(t, conn.sent)
	joined := conn.sent[0]
	require.Equal(t, events.TypeUserJoined, joined.Type)
	payload, ok := joined.Data.(*events.MembershipPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Message)
	assert.Equal(t, models.KindSystem, payload.Message.Kind)
}

func TestAddParticipantByNonMemberForbidden(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	eventRouter, conn := newTestRouter(t, "u1", "c1")
	handler := NewChatHandler(chatRepo, new(mocks.MessageRepositoryMock), eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(false, nil).Once()

	body := bytes.NewBufferString(`{"user_id":"u3","username":"carol"}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/c1/participants", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, conn.sent, "no event may be broadcast on a rejected mutation")
}

func TestRemoveOtherParticipantRequiresAdmin(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	eventRouter, conn := newTestRouter(t, "u1", "c1")
	handler := NewChatHandler(chatRepo, new(mocks.MessageRepositoryMock), eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "c1").
		Return(models.Chat{ID: "c1", AdminID: "u9"}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/c1/participants/u2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, conn.sent)
	chatRepo.AssertExpectations(t)
}

func TestRemoveSelfBroadcastsUserLeft(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	eventRouter, conn := newTestRouter(t, "u2", "c1")
	handler := NewChatHandler(chatRepo, messageRepo, eventRouter, nil)
	r := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "c1").
		Return(models.Chat{ID: "c1", AdminID: "u9"}, nil).Once()
	chatRepo.On("Participants", mock.Anything, "c1").
		Return([]models.Participant{{ChatID: "c1", UserID: "u1", Username: "alice"}}, nil).Once()
	chatRepo.On("RemoveParticipant", mock.Anything, "c1", "u1").Return(nil).Once()
	sysMsg := models.Message{ID: "s1", ChatID: "c1", SenderID: "u1", Kind: models.KindSystem, Content: "alice left the chat"}
	messageRepo.On("CreateMessage", mock.Anything, "c1", "u1", "alice", models.KindSystem, "alice left the chat").
		Return(sysMsg, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/c1/participants/u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)

	require.NotEmpty(t, conn.sent)
	assert.Equal(t, events.TypeUserLeft, conn.sent[0].Type)
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chat-sync/internal/models"
)

// RestClient talks to the chat server's HTTP API. It is the authoritative
// side of the sync protocol: reconnects and resyncs go through here while
// the socket stream fills in live updates.
type RestClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRestClient builds a RestClient against baseURL, authenticating every
// request with the bearer token.
func NewRestClient(baseURL, token string) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListChats fetches the caller's chat list with participants and the last
// message per chat.
func (c *RestClient) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	var out struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// GetMessages pages a chat's history. A zero before fetches the newest page.
func (c *RestClient) GetMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]models.Message, error) {
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages"
	q := url.Values{}
	if !before.IsZero() {
		q.Set("before", before.Format(time.RFC3339Nano))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a message with the given correlation token and returns
// the stored record.
func (c *RestClient) SendMessage(ctx context.Context, chatID, content, clientToken string) (models.Message, error) {
	body := map[string]string{"content": content, "client_token": clientToken}
	var out models.Message
	err := c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", body, &out)
	return out, err
}

// EditMessage updates a message's content and returns the edited record.
func (c *RestClient) EditMessage(ctx context.Context, messageID, content string) (models.Message, error) {
	body := map[string]string{"content": content}
	var out models.Message
	err := c.do(ctx, http.MethodPatch, "/api/messages/"+url.PathEscape(messageID), body, &out)
	return out, err
}

// DeleteMessage tombstones a message.
func (c *RestClient) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, nil)
}

// MarkRead reports a batch of messages as read. The call is idempotent so
// it is safe to replay after a reconnect.
func (c *RestClient) MarkRead(ctx context.Context, chatID string, messageIDs []string) error {
	body := map[string]any{"chat_id": chatID, "message_ids": messageIDs}
	return c.do(ctx, http.MethodPost, "/api/messages/read-batch", body, nil)
}

// ToggleReaction flips the caller's reaction and returns the authoritative
// reaction list for the message.
func (c *RestClient) ToggleReaction(ctx context.Context, messageID, emoji string) ([]models.Reaction, error) {
	body := map[string]string{"emoji": emoji}
	var out struct {
		Reactions []models.Reaction `json:"reactions"`
	}
	err := c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(messageID)+"/reactions", body, &out)
	return out.Reactions, err
}

// Vote toggles a poll vote and returns the resulting tally.
func (c *RestClient) Vote(ctx context.Context, pollID, optionID string) (models.PollState, error) {
	body := map[string]string{"option_id": optionID}
	var out models.PollState
	err := c.do(ctx, http.MethodPost, "/api/polls/"+url.PathEscape(pollID)+"/vote", body, &out)
	return out, err
}

// PollState fetches the current tally for a poll.
func (c *RestClient) PollState(ctx context.Context, pollID string) (models.PollState, error) {
	var out models.PollState
	err := c.do(ctx, http.MethodGet, "/api/polls/"+url.PathEscape(pollID), nil, &out)
	return out, err
}

func (c *RestClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

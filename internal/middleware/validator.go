package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// RemoteValidator asks the auth collaborator service to validate tokens
// over HTTP. Validation uses a short timeout; auth outages surface as 401s
// rather than hung requests.
type RemoteValidator struct {
	baseURL string
	client  *http.Client
}

func NewRemoteValidator(baseURL string) *RemoteValidator {
	return &RemoteValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *RemoteValidator) ValidateToken(ctx context.Context, token string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/validate", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", ErrInvalidToken
	}

	var body struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("auth service response: %w", err)
	}
	if body.UserID == "" {
		return "", "", ErrInvalidToken
	}
	return body.UserID, body.Username, nil
}

// StaticValidator maps opaque tokens to identities from configuration.
// Used in development and tests where no auth service is running.
type StaticValidator map[string]StaticIdentity

type StaticIdentity struct {
	UserID   string
	Username string
}

func (v StaticValidator) ValidateToken(_ context.Context, token string) (string, string, error) {
	identity, ok := v[token]
	if !ok {
		return "", "", ErrInvalidToken
	}
	return identity.UserID, identity.Username, nil
}

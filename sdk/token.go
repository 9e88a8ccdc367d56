package voxa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
)

// TokenService acquires room access tokens from the token endpoint. It
// implements bridge.TokenIssuer.
type TokenService struct {
	client *Client
}

type tokenRequestBody struct {
	Role       string         `json:"role"`
	BusinessID string         `json:"businessId,omitempty"`
	UserName   string         `json:"userName,omitempty"`
	UserEmail  string         `json:"userEmail,omitempty"`
	SessionID  string         `json:"sessionId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type tokenResponseBody struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	RoomName  string `json:"roomName"`
}

// Issue requests a token for the described session.
func (s *TokenService) Issue(ctx context.Context, req bridge.TokenRequest) (bridge.TokenGrant, error) {
	if strings.TrimSpace(req.Role) == "" {
		return bridge.TokenGrant{}, NewInvalidRequestError("role is required")
	}

	body, err := json.Marshal(tokenRequestBody{
		Role:       req.Role,
		BusinessID: req.BusinessID,
		UserName:   req.UserName,
		UserEmail:  req.UserEmail,
		SessionID:  req.SessionID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return bridge.TokenGrant{}, fmt.Errorf("encode token request: %w", err)
	}

	url := strings.TrimRight(s.client.baseURL, "/") + "/api/livekit/token"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return bridge.TokenGrant{}, fmt.Errorf("build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpClient.Do(httpReq)
	if err != nil {
		return bridge.TokenGrant{}, &TransportError{Op: "POST", URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return bridge.TokenGrant{}, &TransportError{Op: "POST", URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bridge.TokenGrant{}, decodeAPIError(resp.StatusCode, data)
	}

	var grant tokenResponseBody
	if err := json.Unmarshal(data, &grant); err != nil {
		return bridge.TokenGrant{}, NewAPIError(fmt.Sprintf("malformed token response: %v", err))
	}
	if grant.Token == "" {
		return bridge.TokenGrant{}, NewAPIError("token response missing token")
	}
	return bridge.TokenGrant{
		Token:     grant.Token,
		ServerURL: grant.ServerURL,
		RoomName:  grant.RoomName,
	}, nil
}

func decodeAPIError(status int, body []byte) error {
	var wrapped struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return wrapped.Error
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &Error{Message: msg, Code: fmt.Sprintf("http_%d", status)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Type = ErrAuthentication
	case status == http.StatusNotFound:
		e.Type = ErrNotFound
	case status == http.StatusTooManyRequests:
		e.Type = ErrRateLimit
	case status >= 400 && status < 500:
		e.Type = ErrInvalidRequest
	case status == http.StatusServiceUnavailable:
		e.Type = ErrOverloaded
	default:
		e.Type = ErrAPI
	}
	return e
}

package voxa

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/sessionstore"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the token service base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = newDefaultHTTPClient()
		}
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDialer sets the room transport. Defaults to the LiveKit dialer.
func WithDialer(d bridge.RoomDialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithSessionStore attaches persistent session state (stable session id,
// last session, pending message slot).
func WithSessionStore(s *sessionstore.Store) ClientOption {
	return func(c *Client) {
		c.store = s
	}
}

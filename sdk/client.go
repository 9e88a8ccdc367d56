// Package voxa provides the Voxa client SDK for Go.
//
// The SDK talks to a Voxa token service over HTTP and joins assistant rooms
// through a pluggable room transport (LiveKit in production, a websocket
// relay for development). Calls are orchestrated by pkg/bridge; this package
// is the convenience surface around it.
package voxa

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/bridge/livekitroom"
	"github.com/voxa-labs/voxa-go/pkg/sessionstore"
)

const defaultBaseURL = "http://localhost:8080"

// Client is the main entry point for the SDK.
type Client struct {
	Tokens *TokenService
	Calls  *CallService

	// Internal
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	dialer     bridge.RoomDialer
	store      *sessionstore.Store
}

// NewClient creates a new client. The token service base URL defaults to
// VOXA_BASE_URL, then to localhost.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		logger:  slog.Default(),
	}
	if url := os.Getenv("VOXA_BASE_URL"); url != "" {
		c.baseURL = url
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}
	if c.dialer == nil {
		c.dialer = &livekitroom.Dialer{Log: c.logger}
	}

	c.Tokens = &TokenService{client: c}
	c.Calls = &CallService{client: c}
	return c
}

// Store returns the configured session store, or nil.
func (c *Client) Store() *sessionstore.Store { return c.store }

package wsroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
)

// Dialer joins a wsroom relay. In this transport the token is simply the
// identity to join as; there is nothing to sign in a dev relay.
type Dialer struct {
	Log *slog.Logger
}

func (d *Dialer) Dial(ctx context.Context, grant bridge.TokenGrant, events chan<- bridge.RoomEvent) (bridge.RoomConnection, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	if grant.Token == "" {
		return nil, errors.New("wsroom: grant has no identity token")
	}

	u, err := url.Parse(grant.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("wsroom: parse server url: %w", err)
	}
	q := u.Query()
	q.Set("room", grant.RoomName)
	q.Set("identity", grant.Token)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsroom: dial %s: status %d: %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wsroom: dial %s: %w", u.Host, err)
	}

	var welcome envelope
	if err := ws.ReadJSON(&welcome); err != nil {
		ws.Close()
		return nil, fmt.Errorf("wsroom: read welcome: %w", err)
	}
	if welcome.Type != frameWelcome {
		ws.Close()
		return nil, fmt.Errorf("wsroom: unexpected first frame %q", welcome.Type)
	}

	c := &Conn{
		log:      log,
		ws:       ws,
		identity: grant.Token,
		events:   events,
		remotes:  make(map[string]struct{}, len(welcome.Participants)),
	}
	for _, id := range welcome.Participants {
		c.remotes[id] = struct{}{}
	}
	go c.readLoop()
	return c, nil
}

// Conn is a live wsroom membership implementing bridge.RoomConnection.
type Conn struct {
	log      *slog.Logger
	ws       *websocket.Conn
	identity string
	events   chan<- bridge.RoomEvent

	writeMu sync.Mutex
	closed  atomic.Bool

	mu      sync.Mutex
	remotes map[string]struct{}
}

func (c *Conn) State() bridge.ConnState {
	if c.closed.Load() {
		return bridge.ConnDisconnected
	}
	return bridge.ConnConnected
}

func (c *Conn) LocalIdentity() string { return c.identity }

func (c *Conn) RemoteParticipants() []bridge.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bridge.Participant, 0, len(c.remotes))
	for id := range c.remotes {
		out = append(out, bridge.Participant{Identity: id})
	}
	return out
}

// LocalPublications is always empty: wsroom carries no media.
func (c *Conn) LocalPublications() []bridge.LocalPublication { return nil }

func (c *Conn) SendData(payload []byte, topic string) error {
	if c.closed.Load() {
		return errors.New("wsroom: connection closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(envelope{Type: frameData, Topic: topic, Payload: payload})
}

func (c *Conn) Disconnect() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.ws.Close()
}

func (c *Conn) readLoop() {
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			reason := bridge.ReasonNetworkError
			if c.closed.Load() {
				reason = bridge.ReasonClientInitiated
			}
			c.closed.Store(true)
			c.ws.Close()
			c.emit(bridge.DisconnectedEvent{Reason: reason})
			return
		}

		switch env.Type {
		case frameJoined:
			c.mu.Lock()
			c.remotes[env.Identity] = struct{}{}
			c.mu.Unlock()
			c.emit(bridge.ParticipantJoinedEvent{Identity: env.Identity})
		case frameLeft:
			c.mu.Lock()
			delete(c.remotes, env.Identity)
			c.mu.Unlock()
			c.emit(bridge.ParticipantLeftEvent{Identity: env.Identity})
		case frameData:
			c.emit(bridge.DataReceivedEvent{
				SenderIdentity: env.Identity,
				Topic:          env.Topic,
				Payload:        env.Payload,
			})
		}
	}
}

func (c *Conn) emit(ev bridge.RoomEvent) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("room event channel full, dropping event")
	}
}

package bridge

import (
	"context"
	"errors"
	"sync"
)

// fakeConn is an in-memory RoomConnection for orchestrator tests.
type fakeConn struct {
	mu           sync.Mutex
	state        ConnState
	remotes      []Participant
	pubs         []LocalPublication
	sent         [][]byte
	sentTopics   []string
	sendErr      error
	disconnected bool

	events chan<- RoomEvent
}

func newFakeConn() *fakeConn {
	return &fakeConn{state: ConnConnected}
}

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *fakeConn) LocalIdentity() string { return "local-user" }

func (c *fakeConn) RemoteParticipants() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Participant, len(c.remotes))
	copy(out, c.remotes)
	return out
}

func (c *fakeConn) setRemotes(remotes ...Participant) {
	c.mu.Lock()
	c.remotes = remotes
	c.mu.Unlock()
}

func (c *fakeConn) LocalPublications() []LocalPublication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubs
}

func (c *fakeConn) SendData(payload []byte, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.sent = append(c.sent, buf)
	c.sentTopics = append(c.sentTopics, topic)
	return nil
}

func (c *fakeConn) sentPayloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	c.state = ConnDisconnected
	c.mu.Unlock()
}

func (c *fakeConn) wasDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// push delivers a transport event the way a real backend would.
func (c *fakeConn) push(ev RoomEvent) {
	c.mu.Lock()
	events := c.events
	c.mu.Unlock()
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conn  *fakeConn
	err   error
	dials int
}

func (d *fakeDialer) Dial(_ context.Context, _ TokenGrant, events chan<- RoomEvent) (RoomConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	if d.conn == nil {
		d.conn = newFakeConn()
	}
	d.conn.mu.Lock()
	d.conn.events = events
	d.conn.mu.Unlock()
	return d.conn, nil
}

type fakeIssuer struct {
	grant TokenGrant
	err   error

	mu   sync.Mutex
	last TokenRequest
}

func (i *fakeIssuer) Issue(_ context.Context, req TokenRequest) (TokenGrant, error) {
	i.mu.Lock()
	i.last = req
	i.mu.Unlock()
	if i.err != nil {
		return TokenGrant{}, i.err
	}
	return i.grant, nil
}

type fakePublication struct {
	sid          string
	unpublishErr error
	stopErr      error
	panicOnStop  bool

	unpublished bool
	stopped     bool
}

func (p *fakePublication) SID() string { return p.sid }

func (p *fakePublication) Unpublish() error {
	p.unpublished = true
	return p.unpublishErr
}

func (p *fakePublication) StopTrack() error {
	if p.panicOnStop {
		panic("track already released")
	}
	p.stopped = true
	return p.stopErr
}

var errFake = errors.New("fake failure")

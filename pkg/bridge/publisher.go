package bridge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPublishPoll is the fallback interval at which the pending slot is
// re-checked while a call is up.
const DefaultPublishPoll = 200 * time.Millisecond

// PendingPublisher owns the single pending outbound chat message. The slot
// has depth one with last-write-wins semantics: queueing while a message is
// already pending replaces it. Dispatch happens only while the connection is
// effectively connected; a content+enqueue-time key guards against the
// enqueue trigger and the poll trigger racing to publish the same message
// twice. Safe for concurrent use: enqueue happens on the caller's goroutine
// while dispatch runs on the session loop.
type PendingPublisher struct {
	log *slog.Logger

	mu            sync.Mutex
	pending       *pendingMessage
	lastPublished string
}

type pendingMessage struct {
	payload []byte
	key     string
}

func NewPendingPublisher(log *slog.Logger) *PendingPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &PendingPublisher{log: log}
}

// Enqueue stores payload as the pending message, replacing any previous one.
// key material is the text content plus the enqueue instant, so re-sending
// identical text later is a distinct message.
func (p *PendingPublisher) Enqueue(text string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &pendingMessage{
		payload: payload,
		key:     fmt.Sprintf("%s\x00%d", text, time.Now().UnixNano()),
	}
}

// HasPending reports whether a message is waiting.
func (p *PendingPublisher) HasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// PublishIfPending dispatches the pending message when one exists, the
// connection is connected, and the message was not already published. The
// slot is cleared on successful send; on send failure the message stays
// pending for the next trigger.
func (p *PendingPublisher) PublishIfPending(conn RoomConnection, topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil || conn == nil || conn.State() != ConnConnected {
		return false
	}
	msg := p.pending
	if msg.key == p.lastPublished {
		p.pending = nil
		return false
	}
	if err := conn.SendData(msg.payload, topic); err != nil {
		p.log.Warn("pending message publish failed, will retry", "error", err)
		return false
	}
	p.lastPublished = msg.key
	p.pending = nil
	return true
}

// Discard drops the pending message, if any. Called when the connection is
// lost so a stale message is not blasted into a future call unseen.
func (p *PendingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

// ResetForConnection clears the dedup key for a fresh connection instance.
// A message enqueued before the call connected stays pending and is
// published once the new connection is up.
func (p *PendingPublisher) ResetForConnection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPublished = ""
}

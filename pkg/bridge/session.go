package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxa-labs/voxa-go/pkg/protocol"
)

// DefaultPresencePoll is the fallback interval for assistant presence
// re-evaluation while waiting.
const DefaultPresencePoll = 1 * time.Second

const roomEventBuffer = 64

// ErrCallActive is returned by StartCall while a call is already running.
var ErrCallActive = errors.New("bridge: call already active")

// Config assembles a Session. Issuer, Dialer and Identity are required.
type Config struct {
	Issuer TokenIssuer
	Dialer RoomDialer

	// Identity is announced to the assistant once per connection and used
	// to build the token request.
	Identity protocol.RoleContext

	// Metadata is passed through to the token endpoint unchanged.
	Metadata map[string]any

	Logger *slog.Logger

	// Timing knobs. Zero values select the defaults (15s, 1s, 200ms).
	AssistantWait time.Duration
	PresencePoll  time.Duration
	PublishPoll   time.Duration
}

// Session orchestrates one logical call at a time: token acquisition, room
// dial, assistant presence, the role context handshake, pending message
// publishing and teardown. Events are surfaced on the Events channel.
//
// A Session may run many calls sequentially. StartCall while a call is
// active fails with ErrCallActive.
type Session struct {
	cfg Config
	log *slog.Logger

	machine   *StageMachine
	presence  *PresenceDetector
	publisher *PendingPublisher
	announcer *ContextAnnouncer

	events chan Event

	mu         sync.Mutex
	conn       RoomConnection
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	kick       chan struct{}
}

// NewSession validates cfg and builds an idle session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Issuer == nil {
		return nil, errors.New("bridge: Config.Issuer is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("bridge: Config.Dialer is required")
	}
	if cfg.Identity.Role == "" {
		return nil, errors.New("bridge: Config.Identity.Role is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.PresencePoll <= 0 {
		cfg.PresencePoll = DefaultPresencePoll
	}
	if cfg.PublishPoll <= 0 {
		cfg.PublishPoll = DefaultPublishPoll
	}

	s := &Session{
		cfg:       cfg,
		log:       log,
		publisher: NewPendingPublisher(log),
		announcer: NewContextAnnouncer(log, cfg.Identity),
		events:    make(chan Event, 32),
	}
	s.machine = NewStageMachine(cfg.AssistantWait, func(stage Stage, reason string) {
		s.emit(StageChangedEvent{Stage: stage, Reason: reason})
	})
	s.presence = NewPresenceDetector(func() {
		s.machine.PresenceDetected()
	})
	return s, nil
}

// Events delivers stage changes and assistant messages. The channel is
// buffered; events are dropped, not blocked on, when the consumer lags.
func (s *Session) Events() <-chan Event { return s.events }

// Stage returns the current call stage.
func (s *Session) Stage() Stage { return s.machine.Stage() }

// ErrorReason returns the reason for the current error stage, or "".
func (s *Session) ErrorReason() string { return s.machine.Reason() }

// StartCall acquires a token, dials the room and starts the event loop. On
// any failure the stage moves to error with a reason of token_failure or
// connect_failure and no connection is left behind.
func (s *Session) StartCall(ctx context.Context) error {
	if !s.machine.Start() {
		return ErrCallActive
	}

	grant, err := s.cfg.Issuer.Issue(ctx, TokenRequest{
		Role:       s.cfg.Identity.Role,
		BusinessID: s.cfg.Identity.BusinessID,
		UserName:   s.cfg.Identity.UserName,
		UserEmail:  s.cfg.Identity.UserEmail,
		SessionID:  s.cfg.Identity.SessionID,
		Metadata:   s.cfg.Metadata,
	})
	if err != nil {
		s.machine.Fail(ErrReasonTokenFailure)
		return fmt.Errorf("issue token: %w", err)
	}

	roomEvents := make(chan RoomEvent, roomEventBuffer)
	conn, err := s.cfg.Dialer.Dial(ctx, grant, roomEvents)
	if err != nil {
		if conn != nil {
			conn.Disconnect()
		}
		s.machine.Fail(ErrReasonConnectFailure)
		return fmt.Errorf("dial room: %w", err)
	}

	s.presence.Reset()
	s.publisher.ResetForConnection()
	s.announcer.Rearm()

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	kick := make(chan struct{}, 1)

	s.mu.Lock()
	s.conn = conn
	s.loopCancel = cancel
	s.loopDone = done
	s.kick = kick
	s.mu.Unlock()

	s.machine.ConnectionOpen()
	go s.run(loopCtx, conn, roomEvents, kick, done)
	return nil
}

// SendText queues text for delivery. The slot holds one message; queueing
// again before dispatch replaces the previous text. Messages queued before
// or between calls are delivered once a connection is up.
func (s *Session) SendText(text string) error {
	payload, err := protocol.NewTextMessage(text).Encode()
	if err != nil {
		return err
	}
	s.publisher.Enqueue(text, payload)

	s.mu.Lock()
	kick := s.kick
	s.mu.Unlock()
	if kick != nil {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// EndCall stops the event loop, tears the connection down and returns the
// stage to idle. Safe to call in any stage, including after a failure.
func (s *Session) EndCall() {
	s.mu.Lock()
	cancel := s.loopCancel
	done := s.loopDone
	conn := s.conn
	s.loopCancel = nil
	s.loopDone = nil
	s.conn = nil
	s.kick = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if conn != nil {
		Teardown(s.log, conn)
	}
	s.publisher.Discard()
	s.machine.End()
}

// run is the per-call event loop. All reactor work happens here; room
// backends only feed the channel.
func (s *Session) run(ctx context.Context, conn RoomConnection, roomEvents <-chan RoomEvent, kick <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	presenceTick := time.NewTicker(s.cfg.PresencePoll)
	defer presenceTick.Stop()
	publishTick := time.NewTicker(s.cfg.PublishPoll)
	defer publishTick.Stop()

	// Connection-open pass: the assistant may already be in the room, and
	// a message may already be queued.
	s.announcer.Announce(conn)
	s.presence.Check(conn)
	s.publisher.PublishIfPending(conn, protocol.ChatTopic)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-roomEvents:
			if !ok {
				return
			}
			if s.handleRoomEvent(conn, ev) {
				return
			}

		case <-presenceTick.C:
			s.presence.Check(conn)

		case <-publishTick.C:
			s.publisher.PublishIfPending(conn, protocol.ChatTopic)

		case <-kick:
			s.publisher.PublishIfPending(conn, protocol.ChatTopic)
		}
	}
}

// handleRoomEvent reacts to one transport event. Returns true when the loop
// should exit.
func (s *Session) handleRoomEvent(conn RoomConnection, ev RoomEvent) bool {
	switch ev := ev.(type) {
	case ParticipantJoinedEvent, TrackSubscribedEvent:
		s.presence.Check(conn)

	case ParticipantLeftEvent:
		// Membership changed; the detector is sticky so this only
		// matters before detection.
		s.presence.Check(conn)

	case DataReceivedEvent:
		if text, ok := protocol.DecodeInbound(ev.Payload); ok {
			s.emit(AgentMessageEvent{Text: text})
		}

	case ReconnectingEvent:
		s.log.Debug("room reconnecting")

	case ReconnectedEvent:
		// The agent may have lost our context across the reconnect.
		s.announcer.Rearm()
		s.announcer.Announce(conn)
		s.presence.Check(conn)
		s.publisher.PublishIfPending(conn, protocol.ChatTopic)

	case DisconnectedEvent:
		reason := ev.Reason
		if reason == "" {
			reason = ReasonUnknown
		}
		s.log.Info("room disconnected", "reason", string(reason))
		s.publisher.Discard()
		s.machine.Fail(string(reason))
		return true
	}
	return false
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event channel full, dropping event")
	}
}

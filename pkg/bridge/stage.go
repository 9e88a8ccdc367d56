package bridge

import (
	"sync"
	"time"
)

// Stage is the user-visible call lifecycle stage.
type Stage int

const (
	StageIdle Stage = iota
	StageCallStarted
	StageWaitingForAssistant
	StageAgentConnected
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCallStarted:
		return "call_started"
	case StageWaitingForAssistant:
		return "waiting_for_assistant"
	case StageAgentConnected:
		return "agent_connected"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Error reasons produced by the orchestrator itself. Transport-supplied
// disconnect reasons pass through unchanged.
const (
	ErrReasonTokenFailure     = "token_failure"
	ErrReasonConnectFailure   = "connect_failure"
	ErrReasonAssistantTimeout = "assistant_timeout"
)

// DefaultAssistantWait is how long the machine waits in
// StageWaitingForAssistant before giving up.
const DefaultAssistantWait = 15 * time.Second

// StageMachine owns the call stage and the waiting-for-assistant timeout.
// All transitions are guarded, so duplicate or racing triggers are no-ops.
// The notify callback observes every effective transition; it is invoked
// outside the lock and must not call back into the machine synchronously
// from another goroutine while holding its own locks.
type StageMachine struct {
	mu     sync.Mutex
	stage  Stage
	reason string
	timer  *time.Timer

	wait   time.Duration
	notify func(stage Stage, reason string)
}

// NewStageMachine builds an idle machine. wait <= 0 selects
// DefaultAssistantWait. notify may be nil.
func NewStageMachine(wait time.Duration, notify func(stage Stage, reason string)) *StageMachine {
	if wait <= 0 {
		wait = DefaultAssistantWait
	}
	if notify == nil {
		notify = func(Stage, string) {}
	}
	return &StageMachine{stage: StageIdle, wait: wait, notify: notify}
}

// Stage returns the current stage.
func (m *StageMachine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Reason returns the error reason, or "" when not in StageError.
func (m *StageMachine) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Start moves idle (or error, allowing retry) to call_started.
func (m *StageMachine) Start() bool {
	return m.transition(func(s Stage) (Stage, bool) {
		if s == StageIdle || s == StageError {
			return StageCallStarted, true
		}
		return s, false
	}, "")
}

// ConnectionOpen moves call_started to waiting_for_assistant and arms the
// timeout.
func (m *StageMachine) ConnectionOpen() bool {
	return m.transition(func(s Stage) (Stage, bool) {
		if s == StageCallStarted {
			return StageWaitingForAssistant, true
		}
		return s, false
	}, "")
}

// PresenceDetected moves waiting_for_assistant to agent_connected and
// cancels the timeout. Idempotent.
func (m *StageMachine) PresenceDetected() bool {
	return m.transition(func(s Stage) (Stage, bool) {
		if s == StageWaitingForAssistant {
			return StageAgentConnected, true
		}
		return s, false
	}, "")
}

// Fail moves any non-idle stage to error with the given reason and cancels
// the timeout. In idle it is a no-op: a session that was never started has
// nothing to fail.
func (m *StageMachine) Fail(reason string) bool {
	return m.transition(func(s Stage) (Stage, bool) {
		if s == StageIdle || s == StageError {
			return s, false
		}
		return StageError, true
	}, reason)
}

// End returns to idle from any stage. Idle is only ever reached this way.
func (m *StageMachine) End() bool {
	return m.transition(func(s Stage) (Stage, bool) {
		if s == StageIdle {
			return s, false
		}
		return StageIdle, true
	}, "")
}

func (m *StageMachine) transition(fn func(Stage) (Stage, bool), reason string) bool {
	m.mu.Lock()
	next, ok := fn(m.stage)
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.stage = next
	if next == StageError {
		m.reason = reason
	} else {
		m.reason = ""
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if next == StageWaitingForAssistant {
		m.timer = time.AfterFunc(m.wait, m.timeout)
	}
	notify := m.notify
	m.mu.Unlock()

	notify(next, reason)
	return true
}

// timeout is a single guarded transition so a racing PresenceDetected
// cannot slip in between the stage check and the failure.
func (m *StageMachine) timeout() {
	m.transition(func(s Stage) (Stage, bool) {
		if s == StageWaitingForAssistant {
			return StageError, true
		}
		return s, false
	}, ErrReasonAssistantTimeout)
}

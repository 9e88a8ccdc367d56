package bridge

import (
	"log/slog"

	"github.com/voxa-labs/voxa-go/pkg/protocol"
)

// ContextAnnouncer sends the role_context handshake exactly once per
// connection instance. Rearm re-enables it for a new connection or after a
// reconnect, where the agent may have lost its session state.
type ContextAnnouncer struct {
	log *slog.Logger
	ctx protocol.RoleContext

	announced bool
}

func NewContextAnnouncer(log *slog.Logger, ctx protocol.RoleContext) *ContextAnnouncer {
	if log == nil {
		log = slog.Default()
	}
	return &ContextAnnouncer{log: log, ctx: ctx}
}

// Rearm allows the next Announce to send again.
func (a *ContextAnnouncer) Rearm() { a.announced = false }

// Announced reports whether the handshake has been sent on this connection
// instance.
func (a *ContextAnnouncer) Announced() bool { return a.announced }

// Announce sends the role context when the connection is connected and the
// handshake has not gone out yet. A send failure leaves the announcer armed
// so a later trigger retries.
func (a *ContextAnnouncer) Announce(conn RoomConnection) bool {
	if a.announced || conn == nil || conn.State() != ConnConnected {
		return false
	}
	payload, err := protocol.NewRoleContextMessage(a.ctx).Encode()
	if err != nil {
		a.log.Error("role context encode failed", "error", err)
		a.announced = true
		return false
	}
	if err := conn.SendData(payload, protocol.ChatTopic); err != nil {
		a.log.Warn("role context send failed, will retry", "error", err)
		return false
	}
	a.announced = true
	return true
}

// Package bridge implements the realtime session bridge: the call state
// machine, assistant presence detection, pending message publishing, role
// context announcement, and teardown, composed by a Session orchestrator.
//
// The bridge is transport-agnostic. Room backends plug in through the
// RoomDialer and RoomConnection interfaces; pkg/bridge/livekitroom provides
// the production LiveKit adapter and pkg/bridge/wsroom a development
// websocket relay.
package bridge

import "context"

// ConnState is the coarse connection state reported by a room backend.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnected
	ConnReconnecting
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Participant is a read-only snapshot of a room member.
type Participant struct {
	Identity      string
	IsLocal       bool
	HasAudioTrack bool
	// Kind carries the backend's participant classification when it has
	// one (for LiveKit, the lk.participant.kind attribute). Empty when
	// the backend does not classify participants.
	Kind string
}

// LocalPublication is one locally published track, as far as teardown is
// concerned.
type LocalPublication interface {
	SID() string
	Unpublish() error
	StopTrack() error
}

// RoomConnection is the narrow view of a live room the bridge needs.
// Implementations must be safe for concurrent use.
type RoomConnection interface {
	State() ConnState
	LocalIdentity() string
	RemoteParticipants() []Participant
	LocalPublications() []LocalPublication

	// SendData publishes a payload on the reliable data channel under the
	// given topic.
	SendData(payload []byte, topic string) error

	Disconnect()
}

// TokenRequest describes the session for which an access token is needed.
type TokenRequest struct {
	Role       string
	BusinessID string
	UserName   string
	UserEmail  string
	SessionID  string
	Metadata   map[string]any
}

// TokenGrant is the result of a successful token issue.
type TokenGrant struct {
	Token     string
	ServerURL string
	RoomName  string
}

// TokenIssuer acquires room access tokens. The SDK's TokenService is the
// production implementation.
type TokenIssuer interface {
	Issue(ctx context.Context, req TokenRequest) (TokenGrant, error)
}

// RoomDialer opens a room connection. Events observed on the connection are
// delivered on the supplied channel until the connection is disconnected; a
// backend must never block on a full channel (drop instead).
type RoomDialer interface {
	Dial(ctx context.Context, grant TokenGrant, events chan<- RoomEvent) (RoomConnection, error)
}

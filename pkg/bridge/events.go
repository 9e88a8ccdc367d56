package bridge

// DisconnectReason classifies why a room connection ended.
type DisconnectReason string

const (
	ReasonUnknown           DisconnectReason = "unknown"
	ReasonClientInitiated   DisconnectReason = "client_initiated"
	ReasonServerShutdown    DisconnectReason = "server_shutdown"
	ReasonNetworkError      DisconnectReason = "network_error"
	ReasonDuplicateIdentity DisconnectReason = "duplicate_identity"
)

// RoomEvent is a transport-level event delivered by a room backend.
type RoomEvent interface{ roomEvent() }

type ParticipantJoinedEvent struct{ Identity string }
type ParticipantLeftEvent struct{ Identity string }
type TrackSubscribedEvent struct{ Identity string }

type DataReceivedEvent struct {
	SenderIdentity string
	Topic          string
	Payload        []byte
}

type ReconnectingEvent struct{}
type ReconnectedEvent struct{}

type DisconnectedEvent struct{ Reason DisconnectReason }

func (ParticipantJoinedEvent) roomEvent() {}
func (ParticipantLeftEvent) roomEvent()   {}
func (TrackSubscribedEvent) roomEvent()   {}
func (DataReceivedEvent) roomEvent()      {}
func (ReconnectingEvent) roomEvent()      {}
func (ReconnectedEvent) roomEvent()       {}
func (DisconnectedEvent) roomEvent()      {}

// Event is a bridge-level event surfaced to the application.
type Event interface{ bridgeEvent() }

// StageChangedEvent reports a call stage transition. Reason is set only for
// transitions into StageError.
type StageChangedEvent struct {
	Stage  Stage
	Reason string
}

// AgentMessageEvent carries an assistant chat message.
type AgentMessageEvent struct{ Text string }

func (StageChangedEvent) bridgeEvent() {}
func (AgentMessageEvent) bridgeEvent() {}

// Package livekitroom adapts a LiveKit room to the bridge transport
// interfaces. It is the production backend; wsroom serves local development.
package livekitroom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
)

// Dialer connects to LiveKit rooms.
type Dialer struct {
	Log *slog.Logger
}

// Dial joins the room named in the grant. Transport events are forwarded on
// events with non-blocking sends; a slow consumer loses events rather than
// stalling the SDK's callback goroutines.
func (d *Dialer) Dial(ctx context.Context, grant bridge.TokenGrant, events chan<- bridge.RoomEvent) (bridge.RoomConnection, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	if grant.ServerURL == "" {
		return nil, fmt.Errorf("livekitroom: grant has no server url")
	}
	if grant.Token == "" {
		return nil, fmt.Errorf("livekitroom: grant has no token")
	}

	emit := func(ev bridge.RoomEvent) {
		select {
		case events <- ev:
		default:
			log.Warn("room event channel full, dropping event")
		}
	}

	cb := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(_ *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				emit(bridge.TrackSubscribedEvent{Identity: rp.Identity()})
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				payload := data.ToProto().GetUser().GetPayload()
				if len(payload) == 0 {
					return
				}
				emit(bridge.DataReceivedEvent{
					SenderIdentity: params.SenderIdentity,
					Topic:          params.Topic,
					Payload:        payload,
				})
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			emit(bridge.ParticipantJoinedEvent{Identity: rp.Identity()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			emit(bridge.ParticipantLeftEvent{Identity: rp.Identity()})
		},
		OnReconnecting: func() { emit(bridge.ReconnectingEvent{}) },
		OnReconnected:  func() { emit(bridge.ReconnectedEvent{}) },
		OnDisconnectedWithReason: func(reason lksdk.DisconnectionReason) {
			emit(bridge.DisconnectedEvent{Reason: mapDisconnectReason(reason)})
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(grant.ServerURL, grant.Token, cb, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return nil, fmt.Errorf("connect to room %q: %w", grant.RoomName, err)
	}
	if err := ctx.Err(); err != nil {
		room.Disconnect()
		return nil, err
	}

	log.Info("joined room", "room", room.Name(), "identity", room.LocalParticipant.Identity())
	return &Conn{room: room}, nil
}

// Conn implements bridge.RoomConnection over a joined *lksdk.Room.
type Conn struct {
	room *lksdk.Room
	once sync.Once
}

func (c *Conn) State() bridge.ConnState {
	switch c.room.ConnectionState() {
	case lksdk.ConnectionStateConnected:
		return bridge.ConnConnected
	case lksdk.ConnectionStateReconnecting:
		return bridge.ConnReconnecting
	default:
		return bridge.ConnDisconnected
	}
}

func (c *Conn) LocalIdentity() string {
	return c.room.LocalParticipant.Identity()
}

func (c *Conn) RemoteParticipants() []bridge.Participant {
	remotes := c.room.GetRemoteParticipants()
	out := make([]bridge.Participant, 0, len(remotes))
	for _, rp := range remotes {
		p := bridge.Participant{Identity: rp.Identity()}
		if attrs := rp.Attributes(); attrs != nil {
			p.Kind = attrs["lk.participant.kind"]
		}
		for _, pub := range rp.TrackPublications() {
			if pub.Kind() == lksdk.TrackKindAudio {
				p.HasAudioTrack = true
				break
			}
		}
		out = append(out, p)
	}
	return out
}

func (c *Conn) LocalPublications() []bridge.LocalPublication {
	pubs := c.room.LocalParticipant.TrackPublications()
	out := make([]bridge.LocalPublication, 0, len(pubs))
	for _, pub := range pubs {
		out = append(out, &localPublication{room: c.room, pub: pub})
	}
	return out
}

func (c *Conn) SendData(payload []byte, topic string) error {
	return c.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(true),
		lksdk.WithDataPublishTopic(topic),
	)
}

func (c *Conn) Disconnect() {
	c.once.Do(c.room.Disconnect)
}

type localPublication struct {
	room *lksdk.Room
	pub  lksdk.TrackPublication
}

func (p *localPublication) SID() string { return p.pub.SID() }

func (p *localPublication) Unpublish() error {
	return p.room.LocalParticipant.UnpublishTrack(p.pub.SID())
}

// StopTrack closes the underlying local track when it supports it. Sample
// and file tracks do; a publication without a live track is a no-op.
func (p *localPublication) StopTrack() error {
	track := p.pub.Track()
	if track == nil {
		return nil
	}
	if closer, ok := track.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// mapDisconnectReason folds the SDK's disconnection reason into the bridge
// taxonomy. Matching is by name so new SDK reasons degrade to unknown
// instead of breaking the build.
func mapDisconnectReason(reason lksdk.DisconnectionReason) bridge.DisconnectReason {
	s := strings.ToLower(fmt.Sprintf("%v", reason))
	switch {
	case strings.Contains(s, "client"), strings.Contains(s, "leave"):
		return bridge.ReasonClientInitiated
	case strings.Contains(s, "duplicate"):
		return bridge.ReasonDuplicateIdentity
	case strings.Contains(s, "shutdown"), strings.Contains(s, "deleted"):
		return bridge.ReasonServerShutdown
	case strings.Contains(s, "network"), strings.Contains(s, "failed"), strings.Contains(s, "signal"):
		return bridge.ReasonNetworkError
	default:
		return bridge.ReasonUnknown
	}
}

package wsroom

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/protocol"
)

func newRelay(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialMember(t *testing.T, wsURL, room, identity string) (bridge.RoomConnection, chan bridge.RoomEvent) {
	t.Helper()
	events := make(chan bridge.RoomEvent, 64)
	conn, err := (&Dialer{}).Dial(context.Background(), bridge.TokenGrant{
		Token:     identity,
		ServerURL: wsURL,
		RoomName:  room,
	}, events)
	if err != nil {
		t.Fatalf("dial %s: %v", identity, err)
	}
	t.Cleanup(conn.Disconnect)
	return conn, events
}

func waitEvent[T bridge.RoomEvent](t *testing.T, events chan bridge.RoomEvent, what string) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %s", what)
			return zero
		}
	}
}

func TestRelayJoinDataLeave(t *testing.T) {
	t.Parallel()
	wsURL := newRelay(t)

	alice, aliceEvents := dialMember(t, wsURL, "room-1", "alice")
	bob, bobEvents := dialMember(t, wsURL, "room-1", "bob")

	// Alice sees bob join; bob got alice in the welcome snapshot.
	joined := waitEvent[bridge.ParticipantJoinedEvent](t, aliceEvents, "bob join")
	if joined.Identity != "bob" {
		t.Errorf("joined identity = %q, want bob", joined.Identity)
	}
	remotes := bob.RemoteParticipants()
	if len(remotes) != 1 || remotes[0].Identity != "alice" {
		t.Errorf("bob remotes = %v, want [alice]", remotes)
	}

	if err := alice.SendData([]byte("plain payload"), "t"); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	data := waitEvent[bridge.DataReceivedEvent](t, bobEvents, "data from alice")
	if data.SenderIdentity != "alice" || string(data.Payload) != "plain payload" || data.Topic != "t" {
		t.Errorf("data = %+v, want alice/plain payload/t", data)
	}

	alice.Disconnect()
	left := waitEvent[bridge.ParticipantLeftEvent](t, bobEvents, "alice leave")
	if left.Identity != "alice" {
		t.Errorf("left identity = %q, want alice", left.Identity)
	}
	disc := waitEvent[bridge.DisconnectedEvent](t, aliceEvents, "alice disconnect")
	if disc.Reason != bridge.ReasonClientInitiated {
		t.Errorf("disconnect reason = %q, want client_initiated", disc.Reason)
	}
}

func TestRelayRejectsDuplicateIdentity(t *testing.T) {
	t.Parallel()
	wsURL := newRelay(t)

	dialMember(t, wsURL, "room-1", "dup")
	events := make(chan bridge.RoomEvent, 8)
	conn, err := (&Dialer{}).Dial(context.Background(), bridge.TokenGrant{
		Token:     "dup",
		ServerURL: wsURL,
		RoomName:  "room-1",
	}, events)
	if err == nil {
		conn.Disconnect()
		t.Fatal("second join with same identity succeeded, want rejection")
	}
}

type staticIssuer struct{ grant bridge.TokenGrant }

func (i staticIssuer) Issue(context.Context, bridge.TokenRequest) (bridge.TokenGrant, error) {
	return i.grant, nil
}

func TestSessionOverRelay(t *testing.T) {
	t.Parallel()
	wsURL := newRelay(t)
	const room = "general-session-e2e"

	session, err := bridge.NewSession(bridge.Config{
		Issuer: staticIssuer{grant: bridge.TokenGrant{
			Token:     "local-user",
			ServerURL: wsURL,
			RoomName:  room,
		}},
		Dialer: &Dialer{},
		Identity: protocol.RoleContext{
			Role:      "general",
			UserName:  "Dana",
			UserEmail: "dana@example.com",
			SessionID: "sess-e2e",
		},
		PresencePoll: 10 * time.Millisecond,
		PublishPoll:  5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(session.EndCall)

	if err := session.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	_, agentEvents := dialMember(t, wsURL, room, "voxa-agent")

	// The agent joining must drive the stage to agent_connected.
	deadline := time.Now().Add(2 * time.Second)
	for session.Stage() != bridge.StageAgentConnected {
		if time.Now().After(deadline) {
			t.Fatalf("stage = %v, want agent_connected", session.Stage())
		}
		time.Sleep(2 * time.Millisecond)
	}

	// The agent receives the role context handshake.
	handshake := waitEvent[bridge.DataReceivedEvent](t, agentEvents, "role context")
	var ctxMsg protocol.RoleContextMessage
	if err := json.Unmarshal(handshake.Payload, &ctxMsg); err != nil {
		t.Fatalf("unmarshal handshake: %v", err)
	}
	if ctxMsg.Type != protocol.TypeRoleContext || ctxMsg.Context.Role != "general" {
		t.Errorf("handshake = %+v, want role_context/general", ctxMsg)
	}

	// Outbound chat reaches the agent.
	if err := session.SendText("hello agent"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	chat := waitEvent[bridge.DataReceivedEvent](t, agentEvents, "chat message")
	var text protocol.TextMessage
	if err := json.Unmarshal(chat.Payload, &text); err != nil {
		t.Fatalf("unmarshal chat: %v", err)
	}
	if text.Type != protocol.TypeTextMessage || text.Text != "hello agent" {
		t.Errorf("chat = %+v, want text_message/hello agent", text)
	}
}

func TestSessionReceivesAgentReplyOverRelay(t *testing.T) {
	t.Parallel()
	wsURL := newRelay(t)
	const room = "general-session-reply"

	session, err := bridge.NewSession(bridge.Config{
		Issuer: staticIssuer{grant: bridge.TokenGrant{
			Token:     "local-user",
			ServerURL: wsURL,
			RoomName:  room,
		}},
		Dialer:       &Dialer{},
		Identity:     protocol.RoleContext{Role: "general", SessionID: "sess-reply"},
		PresencePoll: 10 * time.Millisecond,
		PublishPoll:  5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(session.EndCall)

	if err := session.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	agent, _ := dialMember(t, wsURL, room, "voxa-agent")

	payload, _ := json.Marshal(protocol.AgentResponse{Type: protocol.TypeAgentResponse, Text: "hi, how can I help?"})
	if err := agent.SendData(payload, protocol.ChatTopic); err != nil {
		t.Fatalf("agent SendData: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-session.Events():
			if msg, ok := ev.(bridge.AgentMessageEvent); ok {
				if msg.Text != "hi, how can I help?" {
					t.Fatalf("agent message = %q", msg.Text)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for agent reply")
		}
	}
}

package voxa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/protocol"
	"github.com/voxa-labs/voxa-go/pkg/sessionstore"
)

type memoryConn struct {
	mu   sync.Mutex
	sent [][]byte
}

func (c *memoryConn) State() bridge.ConnState                      { return bridge.ConnConnected }
func (c *memoryConn) LocalIdentity() string                        { return "local" }
func (c *memoryConn) RemoteParticipants() []bridge.Participant     { return nil }
func (c *memoryConn) LocalPublications() []bridge.LocalPublication { return nil }
func (c *memoryConn) Disconnect()                                  {}

func (c *memoryConn) SendData(payload []byte, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, payload)
	return nil
}

type memoryDialer struct {
	mu    sync.Mutex
	conn  *memoryConn
	grant bridge.TokenGrant
}

func (d *memoryDialer) Dial(_ context.Context, grant bridge.TokenGrant, _ chan<- bridge.RoomEvent) (bridge.RoomConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grant = grant
	d.conn = &memoryConn{}
	return d.conn, nil
}

// newTokenServer serves a fixed grant the way voxa-tokend would.
func newTokenServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponseBody{
			Token:     "jwt",
			ServerURL: "wss://livekit.example.com",
			RoomName:  "general-session-x",
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCallRoleValidation(t *testing.T) {
	t.Parallel()

	c := NewClient(WithDialer(&memoryDialer{}))
	ctx := context.Background()

	if _, err := c.Calls.New(ctx, RoleConfig{Role: RoleOwner}); err == nil {
		t.Error("owner without business id should fail")
	}
	if _, err := c.Calls.New(ctx, RoleConfig{Role: "superuser"}); err == nil {
		t.Error("unknown role should fail")
	}

	var apiErr *Error
	_, err := c.Calls.New(ctx, RoleConfig{Role: "superuser"})
	if !errors.As(err, &apiErr) || apiErr.Type != ErrInvalidRequest {
		t.Errorf("error = %v, want invalid_request", err)
	}
}

func TestCallNewGeneratesSessionID(t *testing.T) {
	t.Parallel()

	c := NewClient(WithDialer(&memoryDialer{}))
	session, err := c.Calls.New(context.Background(), RoleConfig{Role: RoleGeneral})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if session == nil {
		t.Fatal("New returned nil session")
	}
	if got := session.Stage(); got != bridge.StageIdle {
		t.Errorf("fresh session stage = %v, want idle", got)
	}
}

func TestCallNewUsesStoredSessionID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := sessionstore.Open(t.TempDir() + "/voxa.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	wantID, err := store.SessionID(ctx)
	if err != nil {
		t.Fatalf("seed session id: %v", err)
	}

	dialer := &memoryDialer{}
	c := NewClient(WithDialer(dialer), WithSessionStore(store), WithBaseURL(newTokenServer(t)))

	session, err := c.Calls.Start(ctx, RoleConfig{
		Role:          RoleCustomer,
		BusinessID:    "biz-42",
		AssistantWait: time.Hour,
		PresencePoll:  10 * time.Millisecond,
		PublishPoll:   10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Calls.End(ctx, session)

	// The stable session id flows into the announced role context.
	var handshake []byte
	deadline := time.Now().Add(2 * time.Second)
	for handshake == nil {
		dialer.mu.Lock()
		conn := dialer.conn
		dialer.mu.Unlock()
		if conn != nil {
			conn.mu.Lock()
			if len(conn.sent) > 0 {
				handshake = conn.sent[0]
			}
			conn.mu.Unlock()
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for role context announcement")
		}
		time.Sleep(2 * time.Millisecond)
	}
	var ctxMsg protocol.RoleContextMessage
	if err := json.Unmarshal(handshake, &ctxMsg); err != nil {
		t.Fatalf("unmarshal handshake: %v", err)
	}
	if ctxMsg.Context.SessionID != wantID {
		t.Errorf("announced session id = %q, want %q", ctxMsg.Context.SessionID, wantID)
	}

	role, biz, ok, err := store.LastSession(ctx)
	if err != nil || !ok {
		t.Fatalf("LastSession ok=%v err=%v", ok, err)
	}
	if role != RoleCustomer || biz != "biz-42" {
		t.Errorf("last session = %q/%q, want customer/biz-42", role, biz)
	}
	active, err := store.CallActive(ctx)
	if err != nil || !active {
		t.Fatalf("CallActive = %v, %v; want true", active, err)
	}

	again, err := store.SessionID(ctx)
	if err != nil || again != wantID {
		t.Errorf("session id changed across call start: %q vs %q", again, wantID)
	}
}

func TestCallEndClearsCallActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := sessionstore.Open(t.TempDir() + "/voxa.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	c := NewClient(WithDialer(&memoryDialer{}), WithSessionStore(store), WithBaseURL(newTokenServer(t)))
	session, err := c.Calls.Start(ctx, RoleConfig{
		Role:          RoleGeneral,
		AssistantWait: time.Hour,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.Calls.End(ctx, session)
	if got := session.Stage(); got != bridge.StageIdle {
		t.Errorf("stage after End = %v, want idle", got)
	}
	if active, _ := store.CallActive(ctx); active {
		t.Error("call-active flag still set after End")
	}
}

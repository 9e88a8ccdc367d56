// Command voxa-call is a terminal client for Voxa assistant calls. It issues
// a token, joins the room for the chosen role, prints stage changes and
// assistant replies, and sends stdin lines as chat messages.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voxa-labs/voxa-go/internal/dotenv"
	"github.com/voxa-labs/voxa-go/internal/roomname"
	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/bridge/wsroom"
	"github.com/voxa-labs/voxa-go/pkg/protocol"
	"github.com/voxa-labs/voxa-go/pkg/sessionstore"
	voxa "github.com/voxa-labs/voxa-go/sdk"
)

const (
	defaultBaseURL   = "http://127.0.0.1:8080"
	defaultStorePath = "voxa.db"

	transportLiveKit = "livekit"
	transportWS      = "ws"
)

type callConfig struct {
	BaseURL    string
	Role       string
	BusinessID string
	UserName   string
	UserEmail  string
	StorePath  string
	Transport  string
	WSURL      string
	Wait       time.Duration
}

func parseCallConfig(args []string, getenv func(string) string) (callConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := callConfig{}
	fs := flag.NewFlagSet("voxa-call", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	baseURL := strings.TrimSpace(getenv("VOXA_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	fs.StringVar(&cfg.BaseURL, "base-url", baseURL, "token service base URL (or VOXA_BASE_URL)")
	fs.StringVar(&cfg.Role, "role", roomname.RoleGeneral, "call role: owner, customer or general")
	fs.StringVar(&cfg.BusinessID, "business", strings.TrimSpace(getenv("VOXA_BUSINESS_ID")), "business id (required for owner)")
	fs.StringVar(&cfg.UserName, "name", "", "display name announced to the assistant")
	fs.StringVar(&cfg.UserEmail, "email", "", "email announced to the assistant")
	fs.StringVar(&cfg.StorePath, "store", defaultStorePath, "session store path")
	fs.StringVar(&cfg.Transport, "transport", transportLiveKit, "room transport: livekit or ws")
	fs.StringVar(&cfg.WSURL, "ws-url", strings.TrimSpace(getenv("VOXA_WS_URL")), "wsroom relay URL (ws transport only)")
	fs.DurationVar(&cfg.Wait, "wait", bridge.DefaultAssistantWait, "how long to wait for the assistant")

	if err := fs.Parse(args); err != nil {
		return callConfig{}, err
	}
	if err := validateCallConfig(cfg); err != nil {
		return callConfig{}, err
	}
	return cfg, nil
}

func validateCallConfig(cfg callConfig) error {
	switch cfg.Role {
	case roomname.RoleOwner:
		if strings.TrimSpace(cfg.BusinessID) == "" {
			return errors.New("owner calls require -business")
		}
	case roomname.RoleCustomer, roomname.RoleGeneral:
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}

	switch cfg.Transport {
	case transportLiveKit:
		parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return errors.New("base-url must be a valid absolute URL")
		}
	case transportWS:
		if strings.TrimSpace(cfg.WSURL) == "" {
			return errors.New("ws transport requires -ws-url")
		}
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	if cfg.Wait <= 0 {
		return errors.New("wait must be > 0")
	}
	return nil
}

// relayIssuer grants wsroom access: the relay trusts the identity as-is, so
// the "token" is just the identity and the room name follows the shared
// naming convention.
type relayIssuer struct {
	wsURL string
}

func (i relayIssuer) Issue(_ context.Context, req bridge.TokenRequest) (bridge.TokenGrant, error) {
	identity := strings.TrimSpace(req.UserName)
	if identity == "" {
		identity = req.Role + "-" + req.SessionID
	}
	return bridge.TokenGrant{
		Token:     identity,
		ServerURL: i.wsURL,
		RoomName:  roomname.ForRole(req.Role, req.BusinessID, req.SessionID),
	}, nil
}

func run(ctx context.Context, cfg callConfig, in io.Reader, out io.Writer, log *slog.Logger) error {
	store, err := sessionstore.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	var session *bridge.Session
	var endCall func()

	switch cfg.Transport {
	case transportWS:
		sessionID, err := store.SessionID(ctx)
		if err != nil {
			return fmt.Errorf("load session id: %w", err)
		}
		session, err = bridge.NewSession(bridge.Config{
			Issuer: relayIssuer{wsURL: cfg.WSURL},
			Dialer: &wsroom.Dialer{Log: log},
			Identity: protocol.RoleContext{
				Role:       cfg.Role,
				BusinessID: cfg.BusinessID,
				UserName:   cfg.UserName,
				UserEmail:  cfg.UserEmail,
				SessionID:  sessionID,
			},
			Logger:        log,
			AssistantWait: cfg.Wait,
		})
		if err != nil {
			return err
		}
		if err := session.StartCall(ctx); err != nil {
			return err
		}
		endCall = session.EndCall

	default:
		client := voxa.NewClient(
			voxa.WithBaseURL(cfg.BaseURL),
			voxa.WithLogger(log),
			voxa.WithSessionStore(store),
		)
		session, err = client.Calls.Start(ctx, voxa.RoleConfig{
			Role:          cfg.Role,
			BusinessID:    cfg.BusinessID,
			UserName:      cfg.UserName,
			UserEmail:     cfg.UserEmail,
			AssistantWait: cfg.Wait,
		})
		if err != nil {
			return err
		}
		endCall = func() { client.Calls.End(context.Background(), session) }
	}
	defer endCall()

	fmt.Fprintf(out, "calling as %s, waiting for the assistant...\n", cfg.Role)
	fmt.Fprintln(out, "Type a message and press enter. /quit to hang up.")

	go printEvents(session.Events(), out)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "hanging up")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				fmt.Fprintln(out, "bye")
				return nil
			}
			if err := session.SendText(line); err != nil {
				log.Warn("send failed", "error", err)
			}
		}
	}
}

func printEvents(events <-chan bridge.Event, out io.Writer) {
	for ev := range events {
		switch ev := ev.(type) {
		case bridge.StageChangedEvent:
			if ev.Stage == bridge.StageError {
				fmt.Fprintf(out, "[call] error: %s\n", ev.Reason)
			} else {
				fmt.Fprintf(out, "[call] %s\n", ev.Stage)
			}
		case bridge.AgentMessageEvent:
			fmt.Fprintf(out, "assistant: %s\n", ev.Text)
		}
	}
}

func main() {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "voxa-call: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseCallConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxa-call: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(ctx, cfg, os.Stdin, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "voxa-call: %v\n", err)
		os.Exit(1)
	}
}

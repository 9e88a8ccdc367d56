// Command voxa-tokend is the reference token service for Voxa clients. It
// mints LiveKit room tokens following the shared room naming convention.
// Endpoint authentication is deliberately out of scope; deploy it behind
// your own gateway.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/voxa-labs/voxa-go/internal/dotenv"
)

const (
	defaultAddr     = ":8080"
	defaultTokenTTL = 6 * time.Hour
)

type serverConfig struct {
	Addr       string
	APIKey     string
	APISecret  string
	LiveKitURL string
	TokenTTL   time.Duration
}

func parseServerConfig(args []string, getenv func(string) string) (serverConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := serverConfig{}
	fs := flag.NewFlagSet("voxa-tokend", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "addr", defaultAddr, "listen address")
	fs.StringVar(&cfg.APIKey, "api-key", strings.TrimSpace(getenv("LIVEKIT_API_KEY")), "LiveKit API key (or LIVEKIT_API_KEY)")
	fs.StringVar(&cfg.APISecret, "api-secret", strings.TrimSpace(getenv("LIVEKIT_API_SECRET")), "LiveKit API secret (or LIVEKIT_API_SECRET)")
	fs.StringVar(&cfg.LiveKitURL, "livekit-url", strings.TrimSpace(getenv("LIVEKIT_URL")), "LiveKit server URL handed to clients (or LIVEKIT_URL)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", defaultTokenTTL, "token validity duration")

	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}
	if err := validateServerConfig(cfg); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

func validateServerConfig(cfg serverConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api-key is required (set LIVEKIT_API_KEY)")
	}
	if cfg.APISecret == "" {
		return errors.New("api-secret is required (set LIVEKIT_API_SECRET)")
	}
	if cfg.LiveKitURL == "" {
		return errors.New("livekit-url is required (set LIVEKIT_URL)")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("token-ttl must be > 0")
	}
	return nil
}

func main() {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "voxa-tokend: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseServerConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxa-tokend: %v\n", err)
		os.Exit(1)
	}

	srv := newServer(cfg)
	slog.Info("starting token service", "addr", cfg.Addr, "livekit_url", cfg.LiveKitURL)
	if err := http.ListenAndServe(cfg.Addr, srv.router); err != nil {
		fmt.Fprintf(os.Stderr, "voxa-tokend: %v\n", err)
		os.Exit(1)
	}
}

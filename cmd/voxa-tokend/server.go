package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/livekit/protocol/auth"

	"github.com/voxa-labs/voxa-go/internal/roomname"
)

type tokenRequest struct {
	Role       string         `json:"role"`
	BusinessID string         `json:"businessId"`
	UserName   string         `json:"userName"`
	UserEmail  string         `json:"userEmail"`
	SessionID  string         `json:"sessionId"`
	Metadata   map[string]any `json:"metadata"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	RoomName  string `json:"roomName"`
}

type server struct {
	apiKey     string
	apiSecret  string
	livekitURL string
	tokenTTL   time.Duration
	router     chi.Router
}

func newServer(cfg serverConfig) *server {
	srv := &server{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		livekitURL: cfg.LiveKitURL,
		tokenTTL:   cfg.TokenTTL,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", srv.handleHealth)
	r.Post("/api/livekit/token", srv.handleToken)

	srv.router = r
	return srv
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "voxa-tokend",
	})
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed json body")
		return
	}

	req.Role = strings.TrimSpace(req.Role)
	req.SessionID = strings.TrimSpace(req.SessionID)
	switch req.Role {
	case roomname.RoleOwner:
		if strings.TrimSpace(req.BusinessID) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "owner tokens require businessId")
			return
		}
	case roomname.RoleCustomer, roomname.RoleGeneral:
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "sessionId is required")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("unknown role %q", req.Role))
		return
	}

	room := roomname.ForRole(req.Role, req.BusinessID, req.SessionID)
	identity := strings.TrimSpace(req.UserName)
	if identity == "" {
		identity = req.Role + "-" + req.SessionID
	}

	token, err := s.mintToken(room, identity, req)
	if err != nil {
		slog.Error("mint token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "api_error", "token minting failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ServerURL: s.livekitURL,
		RoomName:  room,
	})
}

func (s *server) mintToken(room, identity string, req tokenRequest) (string, error) {
	at := auth.NewAccessToken(s.apiKey, s.apiSecret).
		SetVideoGrant(&auth.VideoGrant{RoomJoin: true, Room: room}).
		SetIdentity(identity).
		SetValidFor(s.tokenTTL)
	if req.UserName != "" {
		at.SetName(req.UserName)
	}
	if len(req.Metadata) > 0 {
		metadata, err := json.Marshal(req.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode metadata: %w", err)
		}
		at.SetMetadata(string(metadata))
	}
	return at.ToJWT()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"type": errType, "message": message},
	})
}

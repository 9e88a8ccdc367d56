// Package wsroom is a minimal websocket room relay: a server that groups
// connections into named rooms and fans data payloads out to the other
// members, and a client implementing the bridge transport interfaces. It
// exists for local development and end-to-end tests where a LiveKit
// deployment would be overkill. No media, data channel only.
package wsroom

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
)

// envelope is the single frame type on the wire, for both directions.
// Payload is opaque bytes (base64 in the JSON encoding), so non-JSON chat
// payloads survive the relay untouched.
type envelope struct {
	Type         string   `json:"type"` // welcome | joined | left | data
	Identity     string   `json:"identity,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Topic        string   `json:"topic,omitempty"`
	Payload      []byte   `json:"payload,omitempty"`
}

const (
	frameWelcome = "welcome"
	frameJoined  = "joined"
	frameLeft    = "left"
	frameData    = "data"
)

// Server relays room traffic. Zero value is not usable; call NewServer.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[string]*member
}

type member struct {
	identity string
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func (m *member) send(env envelope) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.conn.WriteJSON(env)
}

func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		rooms:    make(map[string]map[string]*member),
	}
}

// ServeHTTP upgrades GET /?room=<name>&identity=<id> into a room membership.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room")
	identity := r.URL.Query().Get("identity")
	if roomName == "" || identity == "" {
		http.Error(w, "room and identity are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}

	m := &member{identity: identity, conn: conn}
	others, ok := s.join(roomName, m)
	if !ok {
		_ = m.send(envelope{Type: frameLeft, Identity: identity})
		conn.Close()
		return
	}

	_ = m.send(envelope{Type: frameWelcome, Identity: identity, Participants: others})
	s.broadcast(roomName, identity, envelope{Type: frameJoined, Identity: identity})
	s.log.Debug("member joined", "room", roomName, "identity", identity)

	go s.readLoop(roomName, m)
}

func (s *Server) join(roomName string, m *member) (others []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.rooms[roomName]
	if room == nil {
		room = make(map[string]*member)
		s.rooms[roomName] = room
	}
	if _, exists := room[m.identity]; exists {
		return nil, false
	}
	for id := range room {
		others = append(others, id)
	}
	sort.Strings(others)
	room[m.identity] = m
	return others, true
}

func (s *Server) leave(roomName string, m *member) {
	s.mu.Lock()
	room := s.rooms[roomName]
	if room != nil && room[m.identity] == m {
		delete(room, m.identity)
		if len(room) == 0 {
			delete(s.rooms, roomName)
		}
	}
	s.mu.Unlock()
	m.conn.Close()
}

func (s *Server) readLoop(roomName string, m *member) {
	defer func() {
		s.leave(roomName, m)
		s.broadcast(roomName, m.identity, envelope{Type: frameLeft, Identity: m.identity})
		s.log.Debug("member left", "room", roomName, "identity", m.identity)
	}()

	for {
		var env envelope
		if err := m.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != frameData {
			continue
		}
		env.Identity = m.identity
		s.broadcast(roomName, m.identity, env)
	}
}

// broadcast sends env to every room member except the sender.
func (s *Server) broadcast(roomName, sender string, env envelope) {
	s.mu.Lock()
	room := s.rooms[roomName]
	targets := make([]*member, 0, len(room))
	for id, m := range room {
		if id != sender {
			targets = append(targets, m)
		}
	}
	s.mu.Unlock()

	for _, m := range targets {
		if err := m.send(env); err != nil {
			s.log.Warn("broadcast write failed", "identity", m.identity, "error", err)
		}
	}
}

// Package protocol defines the JSON envelopes exchanged over the room data
// channel between Voxa clients and the assistant agent.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ChatTopic is the reliable data-channel topic carrying chat envelopes.
	ChatTopic = "lk.chat"

	TypeTextMessage   = "text_message"
	TypeRoleContext   = "role_context"
	TypeAgentResponse = "agent_response"
)

type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func decodeErr(code, message string) *DecodeError {
	return &DecodeError{Code: code, Message: message}
}

// TextMessage is an outbound user chat message.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: TypeTextMessage, Text: text}
}

func (m TextMessage) Encode() ([]byte, error) {
	if strings.TrimSpace(m.Text) == "" {
		return nil, decodeErr("bad_request", "text_message.text is required")
	}
	if m.Type == "" {
		m.Type = TypeTextMessage
	}
	return json.Marshal(m)
}

// RoleContext identifies the local participant to the assistant at the start
// of a connection.
type RoleContext struct {
	Role       string `json:"role"`
	BusinessID string `json:"businessId,omitempty"`
	UserName   string `json:"userName"`
	UserEmail  string `json:"userEmail"`
	SessionID  string `json:"sessionId"`
}

type RoleContextMessage struct {
	Type    string      `json:"type"`
	Context RoleContext `json:"context"`
}

func NewRoleContextMessage(ctx RoleContext) RoleContextMessage {
	return RoleContextMessage{Type: TypeRoleContext, Context: ctx}
}

func (m RoleContextMessage) Encode() ([]byte, error) {
	if strings.TrimSpace(m.Context.Role) == "" {
		return nil, decodeErr("bad_request", "role_context.context.role is required")
	}
	if m.Type == "" {
		m.Type = TypeRoleContext
	}
	return json.Marshal(m)
}

// AgentResponse is an inbound assistant chat message.
type AgentResponse struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DecodeInbound interprets a data-channel payload as an assistant message.
//
// The agent side of the wire is loose: well-formed payloads are
// {"type":"agent_response","text":...}, but bare {"text":...} objects and
// plain non-JSON text also occur and are accepted. Echoes of our own
// text_message envelopes are dropped, as is any non-JSON payload containing
// the literal "text_message".
func DecodeInbound(payload []byte) (string, bool) {
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		return "", false
	}

	var msg AgentResponse
	if err := json.Unmarshal(payload, &msg); err == nil {
		switch msg.Type {
		case TypeAgentResponse, "":
			if strings.TrimSpace(msg.Text) == "" {
				return "", false
			}
			return msg.Text, true
		default:
			return "", false
		}
	}

	if strings.Contains(raw, TypeTextMessage) {
		return "", false
	}
	return raw, true
}

// EncodeOutbound is a convenience for callers holding either envelope type.
func EncodeOutbound(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case TextMessage:
		return m.Encode()
	case RoleContextMessage:
		return m.Encode()
	default:
		return nil, decodeErr("bad_request", fmt.Sprintf("unsupported outbound message type %T", msg))
	}
}

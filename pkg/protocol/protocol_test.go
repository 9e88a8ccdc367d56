package protocol

import (
	"encoding/json"
	"testing"
)

func TestTextMessageEncode(t *testing.T) {
	t.Parallel()

	data, err := NewTextMessage("hello there").Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := decoded["type"], "text_message"; got != want {
		t.Errorf("type = %v, want %v", got, want)
	}
	if got, want := decoded["text"], "hello there"; got != want {
		t.Errorf("text = %v, want %v", got, want)
	}
}

func TestTextMessageEncodeRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := NewTextMessage("   ").Encode(); err == nil {
		t.Fatal("Encode() of blank text succeeded, want error")
	}
}

func TestRoleContextMessageEncode(t *testing.T) {
	t.Parallel()

	msg := NewRoleContextMessage(RoleContext{
		Role:      "customer",
		UserName:  "Dana",
		UserEmail: "dana@example.com",
		SessionID: "abc-123",
	})
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var decoded struct {
		Type    string `json:"type"`
		Context struct {
			Role       string `json:"role"`
			BusinessID string `json:"businessId"`
			SessionID  string `json:"sessionId"`
		} `json:"context"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "role_context" {
		t.Errorf("type = %q, want role_context", decoded.Type)
	}
	if decoded.Context.Role != "customer" {
		t.Errorf("context.role = %q, want customer", decoded.Context.Role)
	}
	if decoded.Context.SessionID != "abc-123" {
		t.Errorf("context.sessionId = %q, want abc-123", decoded.Context.SessionID)
	}
}

func TestRoleContextOmitsEmptyBusinessID(t *testing.T) {
	t.Parallel()

	msg := NewRoleContextMessage(RoleContext{Role: "general", SessionID: "s"})
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ctx, ok := decoded["context"].(map[string]any)
	if !ok {
		t.Fatalf("context missing: %v", decoded)
	}
	if _, present := ctx["businessId"]; present {
		t.Error("businessId should be omitted when empty")
	}
}

func TestDecodeInbound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		wantText string
		wantOK   bool
	}{
		{"agent response", `{"type":"agent_response","text":"hi"}`, "hi", true},
		{"bare text object", `{"text":"fallback"}`, "fallback", true},
		{"plain text", "just words", "just words", true},
		{"own echo", `{"type":"text_message","text":"me"}`, "", false},
		{"unknown type", `{"type":"something_else","text":"x"}`, "", false},
		{"empty text field", `{"type":"agent_response","text":""}`, "", false},
		{"empty payload", "", "", false},
		{"whitespace payload", "   \n ", "", false},
		{"non-json containing marker", `broken text_message fragment`, "", false},
		{"object without text", `{"foo":1}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeInbound([]byte(tt.payload))
			if ok != tt.wantOK {
				t.Fatalf("DecodeInbound(%q) ok = %v, want %v", tt.payload, ok, tt.wantOK)
			}
			if ok && got != tt.wantText {
				t.Errorf("DecodeInbound(%q) = %q, want %q", tt.payload, got, tt.wantText)
			}
		})
	}
}

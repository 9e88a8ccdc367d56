package voxa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxa-labs/voxa-go/internal/roomname"
	"github.com/voxa-labs/voxa-go/pkg/bridge"
	"github.com/voxa-labs/voxa-go/pkg/protocol"
)

// Roles accepted by the call service. Owners join their business's standing
// room; customers and anonymous visitors get per-session rooms.
const (
	RoleOwner    = roomname.RoleOwner
	RoleCustomer = roomname.RoleCustomer
	RoleGeneral  = roomname.RoleGeneral
)

// RoleConfig parameterizes a call. One entry point covers all three roles.
type RoleConfig struct {
	Role       string
	BusinessID string
	UserName   string
	UserEmail  string

	// SessionID pins the session identity. Empty selects the persisted id
	// from the session store, or a fresh one.
	SessionID string

	// Timing knobs forwarded to the bridge; zero values take the defaults.
	AssistantWait time.Duration
	PresencePoll  time.Duration
	PublishPoll   time.Duration
}

func (rc RoleConfig) validate() error {
	switch rc.Role {
	case RoleOwner:
		if rc.BusinessID == "" {
			return NewInvalidRequestError("owner calls require a business id")
		}
	case RoleCustomer, RoleGeneral:
	default:
		return NewInvalidRequestError(fmt.Sprintf("unknown role %q", rc.Role))
	}
	return nil
}

// CallService starts assistant calls.
type CallService struct {
	client *Client
}

// New builds a bridge session for the given role without starting it. The
// caller owns the session's lifecycle.
func (s *CallService) New(ctx context.Context, rc RoleConfig) (*bridge.Session, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}

	sessionID := rc.SessionID
	if sessionID == "" {
		if s.client.store != nil {
			id, err := s.client.store.SessionID(ctx)
			if err != nil {
				return nil, fmt.Errorf("load session id: %w", err)
			}
			sessionID = id
		} else {
			sessionID = uuid.NewString()
		}
	}

	return bridge.NewSession(bridge.Config{
		Issuer: s.client.Tokens,
		Dialer: s.client.dialer,
		Identity: protocol.RoleContext{
			Role:       rc.Role,
			BusinessID: rc.BusinessID,
			UserName:   rc.UserName,
			UserEmail:  rc.UserEmail,
			SessionID:  sessionID,
		},
		Logger:        s.client.logger,
		AssistantWait: rc.AssistantWait,
		PresencePoll:  rc.PresencePoll,
		PublishPoll:   rc.PublishPoll,
	})
}

// Start builds a session and starts the call. When a session store is
// configured, the last-session and call-active markers are updated best
// effort; persistence never blocks a call.
func (s *CallService) Start(ctx context.Context, rc RoleConfig) (*bridge.Session, error) {
	session, err := s.New(ctx, rc)
	if err != nil {
		return nil, err
	}
	if err := session.StartCall(ctx); err != nil {
		return nil, err
	}

	if store := s.client.store; store != nil {
		if err := store.SetLastSession(ctx, rc.Role, rc.BusinessID); err != nil {
			s.client.logger.Warn("persist last session failed", "error", err)
		}
		if err := store.SetCallActive(ctx, true); err != nil {
			s.client.logger.Warn("persist call-active failed", "error", err)
		}
	}
	return session, nil
}

// End tears the session down and clears the persisted call marker.
func (s *CallService) End(ctx context.Context, session *bridge.Session) {
	session.EndCall()
	if store := s.client.store; store != nil {
		if err := store.SetCallActive(ctx, false); err != nil {
			s.client.logger.Warn("clear call-active failed", "error", err)
		}
	}
}

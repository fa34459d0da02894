package llamastack

import (
	"context"
	"iter"
)

// AgentSession binds a client to one registered agent and session, so turns
// can be started without carrying ids through every call.
type AgentSession struct {
	client    *Client
	agentID   string
	sessionID string
}

// NewAgentSession binds an already-registered agent and session.
func (c *Client) NewAgentSession(agentID, sessionID string) *AgentSession {
	return &AgentSession{client: c, agentID: agentID, sessionID: sessionID}
}

// AgentID returns the bound agent id.
func (s *AgentSession) AgentID() string { return s.agentID }

// SessionID returns the bound session id.
func (s *AgentSession) SessionID() string { return s.sessionID }

// CreateTurn starts a turn on the bound session.
func (s *AgentSession) CreateTurn(ctx context.Context, messages []Message, stream bool) iter.Seq2[TurnUpdate, error] {
	return s.client.CreateTurn(ctx, s.agentID, s.sessionID, TurnRequest{
		Messages: messages,
		Stream:   stream,
	})
}

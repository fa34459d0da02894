package relay

import (
	"context"
	"iter"

	"github.com/ashureev/proposal-chat/internal/llamastack"
)

// TurnStarter starts one turn on the registered agent session. Two
// implementations exist: the bound llamastack.AgentSession helper and the
// raw-client adapter returned by NewTurnAPI. The relay behaves identically
// over either.
type TurnStarter interface {
	CreateTurn(ctx context.Context, messages []llamastack.Message, stream bool) iter.Seq2[llamastack.TurnUpdate, error]
	AgentID() string
	SessionID() string
}

var _ TurnStarter = (*llamastack.AgentSession)(nil)

// TurnCreator is the raw turn API of the service client.
type TurnCreator interface {
	CreateTurn(ctx context.Context, agentID, sessionID string, req llamastack.TurnRequest) iter.Seq2[llamastack.TurnUpdate, error]
}

var _ TurnCreator = (*llamastack.Client)(nil)

// turnAPI adapts the raw client turn API to TurnStarter, carrying the
// registered ids itself.
type turnAPI struct {
	client    TurnCreator
	agentID   string
	sessionID string
}

// NewTurnAPI returns a TurnStarter that drives turns through the raw client
// turn API.
func NewTurnAPI(client TurnCreator, reg Registration) TurnStarter {
	return &turnAPI{
		client:    client,
		agentID:   reg.AgentID,
		sessionID: reg.SessionID,
	}
}

func (t *turnAPI) CreateTurn(ctx context.Context, messages []llamastack.Message, stream bool) iter.Seq2[llamastack.TurnUpdate, error] {
	return t.client.CreateTurn(ctx, t.agentID, t.sessionID, llamastack.TurnRequest{
		Messages: messages,
		Stream:   stream,
	})
}

func (t *turnAPI) AgentID() string { return t.agentID }

func (t *turnAPI) SessionID() string { return t.sessionID }

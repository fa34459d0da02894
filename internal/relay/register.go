package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/proposal-chat/internal/config"
	"github.com/ashureev/proposal-chat/internal/llamastack"
)

// Agent registration wire values.
const (
	agentName         = "Orchestrator Agent"
	agentDescription  = "Agent for help with Red Hat proposals"
	agentInstructions = "You are a helpful assistant. You can use the tools available to answer user questions."
	sessionName       = "agent1"

	proposalToolgroup = "ocp::proposal"
	ragToolgroup      = "builtin::rag/knowledge_search"
)

// Registrar is the slice of the service client that registration needs.
type Registrar interface {
	CreateAgent(ctx context.Context, cfg llamastack.AgentConfig) (string, error)
	CreateSession(ctx context.Context, agentID, name string) (string, error)
}

// Registration identifies the agent and session every turn in this process
// goes through. The pair never changes once created.
type Registration struct {
	AgentID   string
	SessionID string
}

// Register creates the proposal agent and opens its session. It runs once
// at startup; a failure here is fatal to the caller, so nothing else has
// touched the service yet when it returns an error.
func Register(ctx context.Context, reg Registrar, cfg *config.Config, logger *slog.Logger) (Registration, error) {
	if logger == nil {
		logger = slog.Default()
	}

	agentID, err := reg.CreateAgent(ctx, agentConfig(cfg))
	if err != nil {
		return Registration{}, fmt.Errorf("register agent: %w", err)
	}

	sessionID, err := reg.CreateSession(ctx, agentID, sessionName)
	if err != nil {
		return Registration{}, fmt.Errorf("create session: %w", err)
	}

	logger.Info("agent registered",
		"agent_id", agentID,
		"session_id", sessionID,
		"model", cfg.ModelID,
	)

	return Registration{AgentID: agentID, SessionID: sessionID}, nil
}

// agentConfig builds the registration payload: fixed instructions, the
// proposal toolgroup plus knowledge search over the configured vector
// index, no shields, and sampling taken from Settings.
func agentConfig(cfg *config.Config) llamastack.AgentConfig {
	return llamastack.AgentConfig{
		Name:         agentName,
		Description:  agentDescription,
		Model:        cfg.ModelID,
		Instructions: agentInstructions,
		Toolgroups: []llamastack.Toolgroup{
			{Name: proposalToolgroup},
			{Name: ragToolgroup, Args: map[string]any{
				"vector_db_ids": []string{cfg.VectorDBID},
			}},
		},
		ToolChoice:     "auto",
		InputShields:   []string{},
		OutputShields:  []string{},
		MaxInferIters:  cfg.MaxInferIters,
		SamplingParams: samplingParams(cfg),
	}
}

// samplingParams derives the sampling strategy from Settings: a positive
// temperature selects nucleus sampling, zero selects greedy decoding.
func samplingParams(cfg *config.Config) *llamastack.SamplingParams {
	strategy := llamastack.GreedyStrategy()
	if cfg.Temperature > 0 {
		strategy = llamastack.TopPStrategy(cfg.Temperature, cfg.TopP)
	}
	return &llamastack.SamplingParams{
		Strategy:  strategy,
		MaxTokens: cfg.MaxTokens,
	}
}

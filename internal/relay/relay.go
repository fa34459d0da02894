// Package relay bridges the chat surface to the remote agent-orchestration
// service. It registers one agent per process, sends each user question as
// a turn on that agent's single session, and yields accumulated response
// text as completed-turn events arrive.
package relay

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/proposal-chat/internal/llamastack"
)

// Service relays questions to the registered agent session. One Service
// exists per process and every question goes through the same
// (agent, session) pair for its whole lifetime.
type Service struct {
	starter TurnStarter
	stream  bool
	logger  *slog.Logger

	mu      sync.Mutex
	history []string
}

// NewService creates the relay over the given turn strategy. stream is the
// Settings streaming flag and is passed through to every turn unchanged.
func NewService(starter TurnStarter, stream bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		starter: starter,
		stream:  stream,
		logger:  logger,
	}
}

// AgentID returns the registered agent id.
func (s *Service) AgentID() string { return s.starter.AgentID() }

// SessionID returns the session id all turns run on.
func (s *Service) SessionID() string { return s.starter.SessionID() }

// Ask sends one question as a turn and yields the accumulated response text
// each time the turn reports completion. An error record in the update
// stream, or a transport failure, is logged at debug level and ends the
// sequence with no further yields; nothing is retried. Each turn carries
// only the latest question - the question history stays local and is never
// replayed.
func (s *Service) Ask(ctx context.Context, question string) iter.Seq[string] {
	return func(yield func(string) bool) {
		s.mu.Lock()
		s.history = append(s.history, question)
		turn := len(s.history)
		s.mu.Unlock()

		s.logger.Debug("turn started",
			"session_id", s.starter.SessionID(),
			"turn", turn,
		)

		messages := []llamastack.Message{{Role: llamastack.RoleUser, Content: question}}

		var partial strings.Builder
		for update, err := range s.starter.CreateTurn(ctx, messages, s.stream) {
			if err != nil {
				s.logger.Debug("turn stream failed",
					"session_id", s.starter.SessionID(),
					"turn", turn,
					"error", err,
				)
				return
			}
			if update.Err != nil {
				s.logger.Debug("turn returned error",
					"session_id", s.starter.SessionID(),
					"turn", turn,
					"message", update.Err.Message,
				)
				return
			}

			event := update.Event
			if event == nil || event.Payload.EventType != llamastack.EventTurnComplete || event.Payload.Turn == nil {
				continue
			}

			partial.WriteString(event.Payload.Turn.OutputMessage.Content)
			if !yield(partial.String()) {
				return
			}
		}
	}
}

// History returns a copy of every question asked so far, in order.
func (s *Service) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

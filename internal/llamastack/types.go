package llamastack

import "encoding/json"

// RoleUser is the message role the turn API expects for user input.
const RoleUser = "user"

// Message is one chat message in a turn request or response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingStrategy is the service's strategy union: greedy decoding or
// nucleus (top-p) sampling.
type SamplingStrategy struct {
	Type        string   `json:"type"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// GreedyStrategy selects deterministic decoding.
func GreedyStrategy() SamplingStrategy {
	return SamplingStrategy{Type: "greedy"}
}

// TopPStrategy selects nucleus sampling with the given temperature and top-p.
func TopPStrategy(temperature, topP float64) SamplingStrategy {
	return SamplingStrategy{Type: "top_p", Temperature: &temperature, TopP: &topP}
}

// SamplingParams configures token sampling for a registered agent.
type SamplingParams struct {
	Strategy  SamplingStrategy `json:"strategy"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Toolgroup names a toolgroup the agent may call, with optional arguments.
type Toolgroup struct {
	Name string
	Args map[string]any
}

// MarshalJSON encodes the service's union form: a bare name marshals as a
// JSON string, a name with arguments as {"name": ..., "args": {...}}.
func (t Toolgroup) MarshalJSON() ([]byte, error) {
	if len(t.Args) == 0 {
		return json.Marshal(t.Name)
	}
	return json.Marshal(struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}{t.Name, t.Args})
}

// AgentConfig is the registration payload for a new agent. Shield lists are
// sent even when empty, matching what the service expects.
type AgentConfig struct {
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Model          string          `json:"model"`
	Instructions   string          `json:"instructions"`
	Toolgroups     []Toolgroup     `json:"toolgroups,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"`
	InputShields   []string        `json:"input_shields"`
	OutputShields  []string        `json:"output_shields"`
	MaxInferIters  int             `json:"max_infer_iters,omitempty"`
	SamplingParams *SamplingParams `json:"sampling_params,omitempty"`
}

// TurnRequest is the payload for starting a turn on a session.
type TurnRequest struct {
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Turn is the completed-turn object carried by a turn_complete event and by
// the non-streaming response body.
type Turn struct {
	TurnID        string  `json:"turn_id,omitempty"`
	OutputMessage Message `json:"output_message"`
}

// EventTurnComplete marks the event carrying a turn's final output message.
// The stream also delivers step progress and delta events, which this
// client decodes but does not surface.
const EventTurnComplete = "turn_complete"

// TurnUpdate is one record from the turn response stream: either an error
// the service reported for the turn or an event payload. Exactly one field
// is set.
type TurnUpdate struct {
	Err   *TurnError `json:"error,omitempty"`
	Event *TurnEvent `json:"event,omitempty"`
}

// TurnError is an in-stream failure reported by the service.
type TurnError struct {
	Message string `json:"message"`
}

// TurnEvent wraps one event payload.
type TurnEvent struct {
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the event type, plus the completed turn when the
// type is turn_complete.
type EventPayload struct {
	EventType string `json:"event_type"`
	Turn      *Turn  `json:"turn,omitempty"`
}

// Package llamastack is a client for the agent-orchestration service: agent
// and session creation plus turn execution streamed over server-sent events.
package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/packages/ssestream"
)

var (
	errEmptyAgentID   = errors.New("service returned empty agent id")
	errEmptySessionID = errors.New("service returned empty session id")
	errUnhealthy      = errors.New("service unhealthy")
)

// Client talks to the agent-orchestration service over REST.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientConfig holds configuration for the service client.
type ClientConfig struct {
	BaseURL string
	// Timeout caps each call end to end, streaming turns included.
	Timeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://localhost:8321",
		Timeout: 120 * time.Second,
	}
}

// NewClient creates a client for the agent service at cfg.BaseURL.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid agent service URL %q", cfg.BaseURL)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// Health checks that the service is reachable and reports OK. It runs once
// at startup so a bad endpoint fails the process before anything else.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: %w: %s", errUnhealthy, resp.Status)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("health check: decode response: %w", err)
	}
	if !strings.EqualFold(body.Status, "OK") {
		return fmt.Errorf("health check: %w: status %q", errUnhealthy, body.Status)
	}
	return nil
}

// CreateAgent registers a new agent and returns its id.
func (c *Client) CreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	payload := struct {
		AgentConfig AgentConfig `json:"agent_config"`
	}{cfg}

	resp, err := c.postJSON(ctx, "/v1/agents", payload)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create agent: decode response: %w", err)
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("create agent: %w", errEmptyAgentID)
	}

	c.logger.Debug("agent created", "agent_id", out.AgentID, "model", cfg.Model)
	return out.AgentID, nil
}

// CreateSession opens a named session on an agent and returns its id.
func (c *Client) CreateSession(ctx context.Context, agentID, name string) (string, error) {
	payload := struct {
		SessionName string `json:"session_name"`
	}{name}

	path := fmt.Sprintf("/v1/agents/%s/session", url.PathEscape(agentID))
	resp, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create session: decode response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: %w", errEmptySessionID)
	}

	c.logger.Debug("session created", "agent_id", agentID, "session_id", out.SessionID)
	return out.SessionID, nil
}

// CreateTurn starts a turn on the given session and returns its update
// stream. With req.Stream set the service answers over server-sent events
// and each event's data decodes into one TurnUpdate. Without it the service
// answers with a single completed turn, surfaced here as one turn_complete
// update so callers see the same contract either way. Transport and decode
// failures arrive as the iterator's error value; nothing is retried.
func (c *Client) CreateTurn(ctx context.Context, agentID, sessionID string, req TurnRequest) iter.Seq2[TurnUpdate, error] {
	return func(yield func(TurnUpdate, error) bool) {
		path := fmt.Sprintf("/v1/agents/%s/session/%s/turn",
			url.PathEscape(agentID), url.PathEscape(sessionID))

		resp, err := c.postJSON(ctx, path, req)
		if err != nil {
			yield(TurnUpdate{}, fmt.Errorf("create turn: %w", err))
			return
		}

		if !req.Stream {
			defer resp.Body.Close()
			var turn Turn
			if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
				yield(TurnUpdate{}, fmt.Errorf("create turn: decode response: %w", err))
				return
			}
			yield(TurnUpdate{Event: &TurnEvent{Payload: EventPayload{
				EventType: EventTurnComplete,
				Turn:      &turn,
			}}}, nil)
			return
		}

		decoder := ssestream.NewDecoder(resp)
		defer decoder.Close()

		for decoder.Next() {
			data := bytes.TrimSpace(decoder.Event().Data)
			if len(data) == 0 {
				continue
			}
			var update TurnUpdate
			if err := json.Unmarshal(data, &update); err != nil {
				yield(TurnUpdate{}, fmt.Errorf("create turn: decode update: %w", err))
				return
			}
			if !yield(update, nil) {
				return
			}
		}
		if err := decoder.Err(); err != nil {
			yield(TurnUpdate{}, fmt.Errorf("create turn: stream: %w", err))
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.apiError(resp)
	}
	return resp, nil
}

// apiError turns a non-2xx response into an error, extracting the service's
// error envelope when one is present.
func (c *Client) apiError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("service returned %s", resp.Status)
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return fmt.Errorf("service returned %s: %s", resp.Status, envelope.Error.Message)
		}
		if envelope.Error.Detail != "" {
			return fmt.Errorf("service returned %s: %s", resp.Status, envelope.Error.Detail)
		}
	}
	return fmt.Errorf("service returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
}

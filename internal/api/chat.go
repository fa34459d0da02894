package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/proposal-chat/internal/relay"
	"github.com/ashureev/proposal-chat/internal/transcript"
)

// Asker is the conversation surface the chat transports depend on. Each
// yielded string is the accumulated answer so far; the sequence ends when
// the turn completes or fails.
type Asker interface {
	Ask(ctx context.Context, question string) iter.Seq[string]
	SessionID() string
}

var _ Asker = (*relay.Service)(nil)

// Exchange is one prior question/answer pair as the widget rendered it.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ChatRequest is the POST /api/chat payload. History mirrors what the
// client already shows; only Message is forwarded to the agent, which
// keeps its own conversation state.
type ChatRequest struct {
	Message string     `json:"message"`
	History []Exchange `json:"history,omitempty"`
}

// ChatChunk is the data payload of each SSE "message" event. Response
// carries the full answer accumulated so far, not a delta.
type ChatChunk struct {
	Response string `json:"response"`
}

// ChatHandler serves the conversational endpoints over SSE and WebSocket.
type ChatHandler struct {
	relay         Asker
	transcripts   *transcript.Logger
	limiter       *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewChatHandler creates a chat handler backed by the given relay.
func NewChatHandler(asker Asker, transcripts *transcript.Logger, limiter *RateLimiter, allowedOrigin string, isDev bool) *ChatHandler {
	return &ChatHandler{
		relay:         asker,
		transcripts:   transcripts,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// RegisterRoutes registers the chat transports.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Get("/ws/chat", h.HandleWS)
}

// HandleChat handles POST /api/chat requests, streaming the answer back
// as SSE "message" events followed by a final "done" event.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientKey(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Chat request",
		"session_id", h.relay.SessionID(),
		"message_length", len(req.Message),
		"request_id", reqID,
	)
	h.transcripts.Log(transcript.Event{
		SessionID: h.relay.SessionID(),
		Channel:   "chat_http",
		Direction: transcript.DirectionQuestion,
		Content:   req.Message,
	})

	// Stream the answer via SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var answer string
	turns := 0
	for text := range h.relay.Ask(r.Context(), req.Message) {
		answer = text
		turns++
		data, err := json.Marshal(ChatChunk{Response: text})
		if err != nil {
			slog.Warn("failed to marshal chat chunk", "error", err)
			break
		}
		if err := writeSSE(w, "message", string(data)); err != nil {
			slog.Warn("failed to write SSE message event", "error", err)
			h.logAnswer("chat_http", answer, turns)
			return
		}
		flusher.Flush()
	}

	if err := writeSSE(w, "done", `{"status":"complete"}`); err != nil {
		slog.Warn("failed to write SSE done event", "error", err)
	}
	flusher.Flush()
	h.logAnswer("chat_http", answer, turns)
}

func (h *ChatHandler) logAnswer(channel, content string, turns int) {
	h.transcripts.Log(transcript.Event{
		SessionID: h.relay.SessionID(),
		Channel:   channel,
		Direction: transcript.DirectionAnswer,
		Content:   content,
		Turn:      turns,
	})
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

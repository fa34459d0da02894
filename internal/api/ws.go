package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/ashureev/proposal-chat/internal/transcript"
)

// wsMessage is the frame structure for both directions of the chat socket.
type wsMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Response string `json:"response,omitempty"`
}

// HandleWS handles GET /ws/chat. The client sends {"type":"ask"} frames
// and receives a run of {"type":"message"} frames carrying the accumulated
// answer, closed off by a {"type":"done"} frame.
func (h *ChatHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	slog.Info("WebSocket chat connected", "session_id", h.relay.SessionID(), "ip", r.RemoteAddr)

	ctx := r.Context()
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			if writeErr := h.writeJSON(ctx, ws, wsMessage{Type: "error", Content: "invalid message"}); writeErr != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ask":
			if !h.serveAsk(ctx, ws, r, msg.Content) {
				return
			}
		case "ping":
			if err := h.writeJSON(ctx, ws, wsMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

// serveAsk runs one question through the relay and streams the answer
// frames. It reports whether the socket is still usable.
func (h *ChatHandler) serveAsk(ctx context.Context, ws *websocket.Conn, r *http.Request, question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return h.writeJSON(ctx, ws, wsMessage{Type: "error", Content: "message is required"}) == nil
	}
	if !h.limiter.Allow(clientKey(r)) {
		return h.writeJSON(ctx, ws, wsMessage{Type: "error", Content: "rate limit exceeded"}) == nil
	}

	h.transcripts.Log(transcript.Event{
		SessionID: h.relay.SessionID(),
		Channel:   "chat_ws",
		Direction: transcript.DirectionQuestion,
		Content:   question,
	})

	var answer string
	turns := 0
	for text := range h.relay.Ask(ctx, question) {
		answer = text
		turns++
		if err := h.writeJSON(ctx, ws, wsMessage{Type: "message", Response: text}); err != nil {
			slog.Warn("WebSocket write error", "error", err)
			h.logAnswer("chat_ws", answer, turns)
			return false
		}
	}
	h.logAnswer("chat_ws", answer, turns)
	return h.writeJSON(ctx, ws, wsMessage{Type: "done"}) == nil
}

func (h *ChatHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *ChatHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v wsMessage) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

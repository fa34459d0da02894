package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/proposal-chat/internal/domain"
	"github.com/ashureev/proposal-chat/internal/store"
)

// FeedbackHandler handles feedback on assistant replies.
type FeedbackHandler struct {
	repo store.Repository
}

// NewFeedbackHandler creates a feedback handler backed by repo.
func NewFeedbackHandler(repo store.Repository) *FeedbackHandler {
	return &FeedbackHandler{repo: repo}
}

// RegisterRoutes registers the feedback routes.
func (h *FeedbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/feedback", h.Submit)
	r.Get("/api/feedback", h.List)
}

// FeedbackRequest is the POST /api/feedback payload.
type FeedbackRequest struct {
	Question string `json:"question"`
	Response string `json:"response"`
	Flag     string `json:"flag"`
	Comment  string `json:"comment,omitempty"`
}

// Submit records a flagged exchange.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Response) == "" {
		Error(w, http.StatusBadRequest, "response is required")
		return
	}

	flag := domain.FeedbackFlag(strings.ToLower(strings.TrimSpace(req.Flag)))
	if !flag.Valid() {
		Error(w, http.StatusBadRequest, "unknown flag")
		return
	}

	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		Question:  req.Question,
		Response:  req.Response,
		Flag:      flag,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.SaveFeedback(r.Context(), fb); err != nil {
		slog.Error("Failed to save feedback", "error", err, "flag", flag)
		Error(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}

	slog.Info("Feedback recorded", "id", fb.ID, "flag", fb.Flag)
	JSON(w, http.StatusCreated, map[string]string{"id": fb.ID})
}

// List returns the most recent feedback entries, newest first. The limit
// query parameter caps the result; it defaults to 50.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.repo.ListFeedback(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list feedback", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}

	count, err := h.repo.CountFeedback(r.Context())
	if err != nil {
		slog.Error("Failed to count feedback", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"total":   count,
		"entries": feedbackItems(entries),
	})
}

// feedbackItem is the wire form of one feedback entry.
type feedbackItem struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Response  string `json:"response"`
	Flag      string `json:"flag"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

func feedbackItems(entries []*domain.Feedback) []feedbackItem {
	items := make([]feedbackItem, 0, len(entries))
	for _, fb := range entries {
		items = append(items, feedbackItem{
			ID:        fb.ID,
			Question:  fb.Question,
			Response:  fb.Response,
			Flag:      string(fb.Flag),
			Comment:   fb.Comment,
			CreatedAt: fb.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}

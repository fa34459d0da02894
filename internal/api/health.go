package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/proposal-chat/internal/llamastack"
	"github.com/ashureev/proposal-chat/internal/store"
)

// healthCheckTimeout bounds the dependency probes.
const healthCheckTimeout = 5 * time.Second

// StackProber is the health surface of the Llama Stack client.
type StackProber interface {
	Health(ctx context.Context) error
}

var _ StackProber = (*llamastack.Client)(nil)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo  store.Repository
	stack StackProber
}

// NewHealthHandler creates a health handler probing the database and the
// Llama Stack service.
func NewHealthHandler(repo store.Repository, stack StackProber) *HealthHandler {
	return &HealthHandler{repo: repo, stack: stack}
}

// Health returns the health status of the service and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "check", "database", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if err := h.stack.Health(ctx); err != nil {
		slog.Error("Health check failed", "check", "llama_stack", "error", err)
		status["status"] = "degraded"
		checks["llama_stack"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["llama_stack"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/health", h.Health)
}

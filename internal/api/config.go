package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/proposal-chat/internal/config"
	"github.com/ashureev/proposal-chat/internal/domain"
)

// Widget copy shown by the chat frontend.
const (
	widgetTitle       = "Generator proposals by Red Hat"
	widgetDescription = "You can ask questions about Red Hat proposals."
	widgetTagline     = "Your corporate generator proposals"
	widgetPlaceholder = "Ask Me Anything"
)

// examplePrompts seeds the widget's suggestion chips.
var examplePrompts = []string{
	"What SKUs for Red Hat Openshift Container Platform you know?",
	"What infrastructure are available for Red Hat Openshift Container Platform?",
	"Can you detail me if AWS is a valid infrastructure for Red Hat Openshift Container Platform and what SKUs can you provide?",
	"I am a Red Hat OpenShift expert. I need to put together a proposal to determine how many servers in an OpenShift cluster I need to install to handle 10,000 transactions per second. What SKU should I use? Please provide it in the easiest way to understand, preferably with comparative tables",
}

// ConfigHandler serves the frontend configuration.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// RegisterRoutes registers the config route.
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
}

// GetConfig returns the widget configuration for the frontend.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"title":       widgetTitle,
		"description": widgetDescription,
		"tagline":     widgetTagline,
		"placeholder": widgetPlaceholder,
		"examples":    examplePrompts,
		"flags":       domain.Flags(),
		"model":       h.cfg.ModelID,
	})
}

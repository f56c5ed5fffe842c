// Package handlers exposes the HTTP and websocket surface of the assistant.
package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	assistant "github.com/traeworks/assistant"
	"github.com/traeworks/assistant/internal/chat"
	"github.com/traeworks/assistant/internal/hub"
	"github.com/traeworks/assistant/internal/media"
	"github.com/traeworks/assistant/internal/models"
)

const errLoggerKey = "err"

// ChatService handles one chat exchange end to end.
type ChatService interface {
	HandleChat(ctx context.Context, conversationID, text string, flags models.MultimodalFlags) (chat.Result, error)
}

// Store provides read access to stored conversations for the home page.
type Store interface {
	History(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Model reports inference readiness for the health endpoint.
type Model interface {
	Ready() bool
	GPUAvailable() bool
}

// Main wires the chat orchestrator, conversation store, connection hub, and
// media capabilities into the HTTP handler set.
type Main struct {
	templates *template.Template

	chat        ChatService
	store       Store
	model       Model
	hub         *hub.Hub
	analyzer    media.Analyzer
	transcriber media.Transcriber

	logger *slog.Logger
}

// NewMain creates a Main instance and parses the embedded HTML templates.
func NewMain(
	chatSvc ChatService,
	store Store,
	model Model,
	h *hub.Hub,
	analyzer media.Analyzer,
	transcriber media.Transcriber,
	logger *slog.Logger,
) (Main, error) {
	tmpl, err := template.ParseFS(assistant.TemplateFS, "templates/*.html")
	if err != nil {
		return Main{}, err
	}

	return Main{
		templates:   tmpl,
		chat:        chatSvc,
		store:       store,
		model:       model,
		hub:         h,
		analyzer:    analyzer,
		transcriber: transcriber,
		logger:      logger.With(slog.String("module", "handlers")),
	}, nil
}

// HandleEvents exposes the hub's SSE mirror of broadcast events.
func (m Main) HandleEvents(w http.ResponseWriter, r *http.Request) {
	m.hub.ServeEvents(w, r)
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

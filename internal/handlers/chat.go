package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/traeworks/assistant/internal/models"
)

type chatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	MultimodalData map[string]any `json:"multimodal_data,omitempty"`
}

type chatResponse struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func multimodalFlags(data map[string]any) models.MultimodalFlags {
	_, image := data["image"]
	_, screen := data["screen"]
	return models.MultimodalFlags{Image: image, Screen: screen}
}

// HandleChat processes chat interactions through HTTP POST requests. The body
// carries a required "message" field and an optional "conversation_id"; absent
// ids fall back to the default conversation. Malformed bodies are client
// errors, while generation failures surface as normal responses carrying the
// stored apology text.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Invalid request body", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	// History writes must not depend on the requesting client staying
	// connected, so the request context's cancellation is stripped.
	ctx := context.WithoutCancel(r.Context())

	res, err := m.chat.HandleChat(ctx, req.ConversationID, req.Message, multimodalFlags(req.MultimodalData))
	if err != nil {
		m.logger.Error("Failed to handle chat", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, http.StatusOK, chatResponse{
		Response:       res.Message.Content,
		ConversationID: res.ConversationID,
		Timestamp:      res.Message.Timestamp,
	})
}

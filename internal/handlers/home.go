package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/traeworks/assistant/internal/chat"
	"github.com/traeworks/assistant/internal/models"
)

type homeMessage struct {
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type homePageData struct {
	ConversationID string
	Messages       []homeMessage
}

// HandleHome serves the chat interface with the stored history of the
// requested conversation rendered into the page. Message content is markdown.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		conversationID = chat.DefaultConversationID
	}

	history, err := m.store.History(r.Context(), conversationID)
	if err != nil {
		m.logger.Error("Failed to get history",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs := make([]homeMessage, 0, len(history))
	for _, msg := range history {
		content, err := models.RenderMarkdown(msg.Content)
		if err != nil {
			m.logger.Error("Failed to render content",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs = append(msgs, homeMessage{
			Role:      string(msg.Role),
			Content:   content,
			Timestamp: msg.Timestamp,
		})
	}

	data := homePageData{
		ConversationID: conversationID,
		Messages:       msgs,
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

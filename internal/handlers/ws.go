package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/traeworks/assistant/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The original deployment serves the UI and API from one process with
	// open CORS; origin checks are left to the proxy in front.
	CheckOrigin: func(*http.Request) bool { return true },
}

// inboundFrame is a frame as received from the client; data stays raw until
// the event kind is known.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type screenSharePayload struct {
	Screen string `json:"screen"`
}

// wsWriteTimeout bounds a single frame write so a stalled peer cannot pin the
// hub's writer goroutine.
const wsWriteTimeout = 10 * time.Second

// wsConn adapts a websocket connection to the hub's Conn interface. Write
// serialization is handled by the hub's per-connection writer goroutine.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) Send(v any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c wsConn) Close() error {
	return c.conn.Close()
}

// HandleWS runs the real-time message loop for one client. The connection is
// registered under the path's client id, frames are dispatched by their
// declared kind, and the first receive failure deregisters the connection.
func (m Main) HandleWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade connection",
			slog.String("clientID", clientID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	cl := m.hub.Register(clientID, wsConn{conn: conn})
	defer m.hub.Unregister(cl)

	m.logger.Info("Client connected", slog.String("clientID", clientID))

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			m.logger.Info("Client disconnected",
				slog.String("clientID", clientID),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		m.dispatchFrame(cl, frame)
	}
}

func (m Main) dispatchFrame(cl *hub.Client, frame inboundFrame) {
	switch frame.Type {
	case "chat":
		m.handleChatFrame(cl, frame.Data)
	case "screen_share":
		m.handleScreenShareFrame(cl, frame.Data)
	case "typing":
		m.hub.BroadcastTyping(cl.ID(), json.RawMessage(frame.Data))
	default:
		m.logger.Warn("Unknown frame type",
			slog.String("clientID", cl.ID()),
			slog.String("type", frame.Type))
	}
}

func (m Main) handleChatFrame(cl *hub.Client, data json.RawMessage) {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.logger.Error("Invalid chat frame",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	if req.Message == "" {
		m.logger.Error("Chat frame without message", slog.String("clientID", cl.ID()))
		return
	}

	// A disconnect must not cancel the generation it triggered; the result
	// is persisted either way and only the reply send is skipped.
	res, err := m.chat.HandleChat(context.Background(), req.ConversationID, req.Message, multimodalFlags(req.MultimodalData))
	if err != nil {
		m.logger.Error("Failed to handle chat frame",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if err := cl.Send(hub.Frame{
		Type: hub.EventChatResponse,
		Data: chatResponse{
			Response:       res.Message.Content,
			ConversationID: res.ConversationID,
			Timestamp:      res.Message.Timestamp,
		},
	}); err != nil {
		m.logger.Info("Failed to send chat response",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) handleScreenShareFrame(cl *hub.Client, data json.RawMessage) {
	var payload screenSharePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		m.logger.Error("Invalid screen share frame",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	analysis, err := m.analyzer.Describe(context.Background(), payload.Screen)
	if err != nil {
		m.logger.Error("Failed to analyze screen",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
		analysis = "Unable to process image"
	}

	if err := cl.Send(hub.Frame{
		Type: hub.EventScreenAnalysis,
		Data: map[string]string{"analysis": analysis},
	}); err != nil {
		m.logger.Info("Failed to send screen analysis",
			slog.String("clientID", cl.ID()),
			slog.String(errLoggerKey, err.Error()))
	}
}

package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/traeworks/assistant/internal/hub"
)

type wireFrame struct {
	Type           string          `json:"type"`
	Data           json.RawMessage `json:"data"`
	ConversationID string          `json:"conversation_id,omitempty"`
	SenderID       string          `json:"sender_id,omitempty"`
}

func newWSServer(t *testing.T, env testEnv) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{client_id}", env.main.HandleWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%q) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var frame wireFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return frame
}

func TestHandleWSChat(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{response: "AI response"}, fakeModel{ready: true})
	srv := newWSServer(t, env)
	conn := dialWS(t, srv, "client-1")

	err := conn.WriteJSON(map[string]any{
		"type": "chat",
		"data": map[string]any{"message": "Hello", "conversation_id": "c1"},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	// The orchestrator broadcasts the stored reply to every connection before
	// the socket's own chat_response goes out, so this client sees both, in
	// that order.
	broadcast := readFrame(t, conn)
	if broadcast.Type != hub.EventNewMessage {
		t.Fatalf("first frame type = %q, want %q", broadcast.Type, hub.EventNewMessage)
	}
	if broadcast.ConversationID != "c1" {
		t.Errorf("broadcast conversation = %q, want %q", broadcast.ConversationID, "c1")
	}

	response := readFrame(t, conn)
	if response.Type != hub.EventChatResponse {
		t.Fatalf("second frame type = %q, want %q", response.Type, hub.EventChatResponse)
	}
	var payload struct {
		Response       string `json:"response"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		t.Fatalf("unmarshal chat response: %v", err)
	}
	if payload.Response != "AI response" {
		t.Errorf("response = %q, want %q", payload.Response, "AI response")
	}
	if payload.ConversationID != "c1" {
		t.Errorf("conversation_id = %q, want %q", payload.ConversationID, "c1")
	}
}

func TestHandleWSTypingNotEchoed(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{response: "ok"}, fakeModel{ready: true})
	srv := newWSServer(t, env)

	sender := dialWS(t, srv, "sender")
	receiver := dialWS(t, srv, "receiver")

	// Registration happens in the handler goroutine after the upgrade; give
	// both connections a moment to land in the registry.
	waitForClients(t, env.hub, 2)

	err := sender.WriteJSON(map[string]any{
		"type": "typing",
		"data": map[string]any{"typing": true},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	frame := readFrame(t, receiver)
	if frame.Type != hub.EventTyping {
		t.Fatalf("frame type = %q, want %q", frame.Type, hub.EventTyping)
	}
	if frame.SenderID != "sender" {
		t.Errorf("sender_id = %q, want %q", frame.SenderID, "sender")
	}

	// The sender must not receive its own typing event.
	if err := sender.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var echoed wireFrame
	if err := sender.ReadJSON(&echoed); err == nil {
		t.Errorf("sender received frame %+v, want none", echoed)
	}
}

func TestHandleWSScreenShare(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{response: "ok"}, fakeModel{ready: true})
	srv := newWSServer(t, env)
	conn := dialWS(t, srv, "client-1")

	err := conn.WriteJSON(map[string]any{
		"type": "screen_share",
		"data": map[string]any{"screen": "data:image/png;base64,eA=="},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != hub.EventScreenAnalysis {
		t.Fatalf("frame type = %q, want %q", frame.Type, hub.EventScreenAnalysis)
	}
	var payload struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal analysis: %v", err)
	}
	if payload.Analysis != "Image received and processed" {
		t.Errorf("analysis = %q, want acknowledgment", payload.Analysis)
	}
}

func TestHandleWSInvalidScreenPayload(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{response: "ok"}, fakeModel{ready: true})
	srv := newWSServer(t, env)
	conn := dialWS(t, srv, "client-1")

	err := conn.WriteJSON(map[string]any{
		"type": "screen_share",
		"data": map[string]any{"screen": "not a data url"},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != hub.EventScreenAnalysis {
		t.Fatalf("frame type = %q, want %q", frame.Type, hub.EventScreenAnalysis)
	}
	var payload struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal analysis: %v", err)
	}
	if payload.Analysis != "Unable to process image" {
		t.Errorf("analysis = %q, want degradation notice", payload.Analysis)
	}
}

func waitForClients(t *testing.T, h *hub.Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.ClientIDs()) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registered clients = %v, want %d", h.ClientIDs(), want)
}

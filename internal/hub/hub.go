// Package hub tracks live real-time connections and fans conversation events
// out to them. Delivery is best-effort: each connection has a bounded outbound
// queue drained by its own writer goroutine, so a slow consumer never delays
// delivery to other connections, and connections whose queue overflows or
// whose writes fail are pruned from the registry.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/traeworks/assistant/internal/models"
)

const errLoggerKey = "err"

// Event kinds carried by outbound frames.
const (
	EventNewMessage     = "new_message"
	EventTyping         = "typing"
	EventChatResponse   = "chat_response"
	EventScreenAnalysis = "screen_analysis"
)

// sendQueueSize bounds the per-connection outbound queue. A connection that
// falls this many frames behind is treated as dead.
const sendQueueSize = 32

const eventsSSETopic = "events"

var newMessageSSEType = sse.Type(EventNewMessage)

var (
	errQueueFull    = errors.New("outbound queue full")
	errClientClosed = errors.New("connection closed")
)

// Frame is the JSON envelope exchanged with real-time clients.
type Frame struct {
	Type           string `json:"type"`
	Data           any    `json:"data"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
}

// Conn is one live outbound channel to a client.
type Conn interface {
	Send(v any) error
	Close() error
}

// Client is a registered connection. Send enqueues onto the connection's
// outbound queue; the hub's writer goroutine is the only thing that touches
// the underlying connection, and the queue keeps a frame's delivery order
// while decoupling producers from the connection's pace.
type Client struct {
	id   string
	conn Conn

	out  chan Frame
	done chan struct{}
	once sync.Once
}

// ID returns the client identifier the connection is registered under.
func (c *Client) ID() string {
	return c.id
}

// Send enqueues a single frame for delivery. It never blocks: a full queue or
// a closed connection fails the send immediately.
func (c *Client) Send(frame Frame) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errQueueFull
	}
}

// close releases the connection and stops its writer goroutine. Safe to call
// more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub is the connection registry and broadcaster. It additionally mirrors
// new-message broadcasts onto an SSE stream for clients that cannot hold a
// websocket.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	events *sse.Server

	logger *slog.Logger
}

// New creates an empty Hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		events: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, eventsSSETopic},
				}, true
			},
		},
		logger: logger.With(slog.String("module", "hub")),
	}
}

// Register adds a connection under clientID, starts its writer goroutine, and
// returns its handle. A prior connection registered under the same id is
// closed and replaced; last connect wins.
func (h *Hub) Register(clientID string, conn Conn) *Client {
	c := &Client{
		id:   clientID,
		conn: conn,
		out:  make(chan Frame, sendQueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	prev := h.clients[clientID]
	h.clients[clientID] = c
	h.mu.Unlock()

	if prev != nil {
		prev.close()
		h.logger.Info("Replaced stale connection", slog.String("clientID", clientID))
	}

	go h.writeLoop(c)
	return c
}

// writeLoop drains the client's outbound queue onto the connection. It is the
// only writer the connection ever sees. A failed write of anything but a
// typing frame prunes the connection.
func (h *Hub) writeLoop(c *Client) {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			if err := c.conn.Send(frame); err != nil {
				if frame.Type == EventTyping {
					h.logger.Debug("Typing send failed",
						slog.String("clientID", c.id),
						slog.String(errLoggerKey, err.Error()))
					continue
				}
				h.logger.Info("Send failed, pruning connection",
					slog.String("clientID", c.id),
					slog.String(errLoggerKey, err.Error()))
				h.Unregister(c)
				return
			}
		}
	}
}

// Unregister removes the connection from the registry and closes it. It only
// removes the given handle, so a connection replaced by a later Register call
// cannot evict its successor.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	c.close()
}

// ClientIDs returns the identifiers of all registered connections, sorted.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// Broadcast delivers a new_message event to every registered connection.
// Enqueueing never blocks, so one stalled consumer cannot delay the others;
// connections whose queue is full or closed are collected during the sweep
// and deregistered after it completes, never while the registry is being
// iterated.
func (h *Hub) Broadcast(conversationID string, message models.Message) {
	frame := Frame{
		Type:           EventNewMessage,
		Data:           message,
		ConversationID: conversationID,
	}

	var failed []*Client
	for _, c := range h.snapshot() {
		if err := c.Send(frame); err != nil {
			h.logger.Info("Enqueue failed, pruning connection",
				slog.String("clientID", c.id),
				slog.String(errLoggerKey, err.Error()))
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.Unregister(c)
	}

	h.publishEvent(frame)
}

// BroadcastTyping delivers a typing event to every registered connection
// except the sender. Delivery is best-effort and failures are ignored.
func (h *Hub) BroadcastTyping(senderID string, data any) {
	frame := Frame{
		Type:     EventTyping,
		Data:     data,
		SenderID: senderID,
	}

	for _, c := range h.snapshot() {
		if c.id == senderID {
			continue
		}
		if err := c.Send(frame); err != nil {
			h.logger.Debug("Typing enqueue failed",
				slog.String("clientID", c.id),
				slog.String(errLoggerKey, err.Error()))
		}
	}
}

// publishEvent mirrors a frame onto the SSE stream.
func (h *Hub) publishEvent(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to marshal event", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := &sse.Message{Type: newMessageSSEType}
	msg.AppendData(string(data))
	if err := h.events.Publish(msg, eventsSSETopic); err != nil {
		h.logger.Error("Failed to publish event", slog.String(errLoggerKey, err.Error()))
	}
}

// ServeEvents exposes the SSE mirror endpoint.
func (h *Hub) ServeEvents(w http.ResponseWriter, r *http.Request) {
	h.events.ServeHTTP(w, r)
}

// Shutdown closes all registered connections and terminates the SSE server. It
// broadcasts a close message to SSE clients and waits up to 5 seconds for
// connections to drain.
func (h *Hub) Shutdown(ctx context.Context) error {
	for _, c := range h.snapshot() {
		h.Unregister(c)
	}

	e := &sse.Message{Type: sse.Type("close")}
	// The SSE spec requires data on every event.
	e.AppendData("bye")
	_ = h.events.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return h.events.Shutdown(ctx)
}

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/traeworks/assistant/internal/models"
)

// DefaultConversationID is used when a request does not name a conversation.
const DefaultConversationID = "default"

// DefaultSystemPrompt is the fixed system instruction prepended to every
// generation input.
const DefaultSystemPrompt = "You are Trae AI, an advanced coding assistant. " +
	"You help developers with code generation, debugging, optimization, architecture design, " +
	"and best practices. Always provide helpful, accurate responses with working code examples " +
	"when appropriate."

const errLoggerKey = "err"

// Store is the conversation history boundary consumed by the orchestrator.
type Store interface {
	Append(ctx context.Context, conversationID string, message models.Message) error
	History(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Generator is the inference gateway boundary consumed by the orchestrator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Broadcaster pushes a newly stored message to all live connections.
type Broadcaster interface {
	Broadcast(conversationID string, message models.Message)
}

// Result is the outcome of a handled chat request.
type Result struct {
	Message        models.Message
	ConversationID string
}

// Orchestrator handles a chat request end to end: append the user message,
// build the bounded context, invoke the gateway, append the assistant message,
// and trigger the broadcast.
type Orchestrator struct {
	store       Store
	gateway     Generator
	broadcaster Broadcaster

	systemPrompt string

	logger *slog.Logger
}

// NewOrchestrator wires the orchestrator. An empty systemPrompt selects
// DefaultSystemPrompt.
func NewOrchestrator(
	store Store,
	gateway Generator,
	broadcaster Broadcaster,
	systemPrompt string,
	logger *slog.Logger,
) *Orchestrator {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Orchestrator{
		store:        store,
		gateway:      gateway,
		broadcaster:  broadcaster,
		systemPrompt: systemPrompt,
		logger:       logger.With(slog.String("module", "chat")),
	}
}

// HandleChat processes one user message. Generation failure is user-visible
// content, not a hard error: the assistant message degrades to an apology
// embedding the error detail and is stored and returned normally. An error is
// returned only when history cannot be read or messages cannot be persisted.
func (o *Orchestrator) HandleChat(
	ctx context.Context,
	conversationID string,
	text string,
	flags models.MultimodalFlags,
) (Result, error) {
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	history, err := o.store.History(ctx, conversationID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get history: %w", err)
	}

	userMsg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		Type:      userMessageType(flags),
	}
	if err := o.store.Append(ctx, conversationID, userMsg); err != nil {
		return Result{}, fmt.Errorf("failed to append user message: %w", err)
	}

	// The context window covers the messages prior to this user message.
	prompt := FullPrompt(o.systemPrompt, BuildContext(history, flags), text)

	content, err := o.gateway.Generate(ctx, prompt)
	if err != nil {
		o.logger.Error("Generation failed",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		content = fmt.Sprintf("I apologize, but I encountered an error while processing your request: %v", err)
	}

	assistantMsg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Type:      assistantMessageType(content),
	}
	if err := o.store.Append(ctx, conversationID, assistantMsg); err != nil {
		return Result{}, fmt.Errorf("failed to append assistant message: %w", err)
	}

	o.broadcaster.Broadcast(conversationID, assistantMsg)

	return Result{
		Message:        assistantMsg,
		ConversationID: conversationID,
	}, nil
}

// userMessageType classifies a user message by the auxiliary signals that
// accompanied it. An image takes precedence over screen content, matching the
// annotation order in the context.
func userMessageType(flags models.MultimodalFlags) models.MessageType {
	switch {
	case flags.Image:
		return models.MessageTypeImage
	case flags.Screen:
		return models.MessageTypeScreen
	default:
		return models.MessageTypeText
	}
}

// assistantMessageType marks replies carrying a fenced code block so the UI
// can render them accordingly.
func assistantMessageType(content string) models.MessageType {
	if strings.Contains(content, "```") {
		return models.MessageTypeCode
	}
	return models.MessageTypeText
}

// Package store persists ordered, append-only conversation histories keyed by
// conversation id. Conversations are created lazily on first append and are
// never deleted.
package store

import (
	"context"

	"github.com/traeworks/assistant/internal/models"
)

// Store is the conversation history boundary. Implementations must guarantee
// atomic appends: concurrent appends to the same conversation id may interleave
// in any order, but none may be lost.
type Store interface {
	// Append adds a message to the end of a conversation, creating the
	// conversation if it does not exist yet.
	Append(ctx context.Context, conversationID string, message models.Message) error
	// History returns the conversation's messages in append order. A
	// conversation that was never appended to yields an empty history.
	History(ctx context.Context, conversationID string) ([]models.Message, error)
}

package store

import (
	"context"
	"sync"

	"github.com/traeworks/assistant/internal/models"
)

// Memory is an in-memory Store. Each conversation carries its own lock, so
// appends to unrelated conversations never contend with each other.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
}

type conversation struct {
	mu       sync.Mutex
	messages []models.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*conversation),
	}
}

func (m *Memory) conversation(id string) *conversation {
	m.mu.RLock()
	c, ok := m.conversations[id]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another append may have created the conversation while the write lock
	// was being acquired.
	if c, ok := m.conversations[id]; ok {
		return c
	}
	c = &conversation{}
	m.conversations[id] = c
	return c
}

// Append adds a message to the conversation, creating it if absent.
func (m *Memory) Append(_ context.Context, conversationID string, message models.Message) error {
	c := m.conversation(conversationID)
	c.mu.Lock()
	c.messages = append(c.messages, message)
	c.mu.Unlock()
	return nil
}

// History returns a copy of the conversation's messages in append order.
func (m *Memory) History(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.RLock()
	c, ok := m.conversations[conversationID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]models.Message, len(c.messages))
	copy(messages, c.messages)
	return messages, nil
}

package models

import "time"

// Role represents the role of a message participant.
type Role string

// MessageType represents the kind of content a message carries.
type MessageType string

const (
	// RoleUser represents a message authored by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message authored by the assistant.
	RoleAssistant Role = "assistant"

	// MessageTypeText is plain conversational text.
	MessageTypeText MessageType = "text"
	// MessageTypeImage marks a message that originated from an image upload.
	MessageTypeImage MessageType = "image"
	// MessageTypeCode marks a message containing a code block.
	MessageTypeCode MessageType = "code"
	// MessageTypeScreen marks a message that originated from a screen share.
	MessageTypeScreen MessageType = "screen"
)

// Message represents an individual entry within a conversation. Messages are
// immutable once created and ordered within their conversation by append order.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"message_type"`
}

// MultimodalFlags indicates which auxiliary signals accompanied a chat request.
type MultimodalFlags struct {
	Image  bool
	Screen bool
}

package entities

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one turn of the conversation transcript. Messages are never
// mutated once appended to a session.
type Message struct {
	ID             string      `json:"id" bson:"id"`
	Role           MessageRole `json:"role" bson:"role"`
	Content        string      `json:"content" bson:"content"`
	AwaitsResponse bool        `json:"awaits_response" bson:"awaits_response"`
	// AssetKey references a visual aid in the protocol registry asset table.
	AssetKey  string    `json:"asset_key,omitempty" bson:"asset_key,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

func newMessage(role MessageRole, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a message for finalized user speech or typed text
func NewUserMessage(content string) Message {
	return newMessage(MessageRoleUser, content)
}

// NewAssistantMessage creates an assistant message from a dialogue turn
func NewAssistantMessage(turn Turn) Message {
	m := newMessage(MessageRoleAssistant, turn.Text)
	m.AwaitsResponse = turn.AwaitsResponse
	m.AssetKey = turn.AssetKey
	return m
}

// NewSystemMessage creates a system notice, e.g. the outcome of a contact call
func NewSystemMessage(content string) Message {
	return newMessage(MessageRoleSystem, content)
}

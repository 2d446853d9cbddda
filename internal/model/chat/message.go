package chat

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single turn inside a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         Role      `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Blank reports whether the message carries no visible text.
func (m Message) Blank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// UserMessage builds an unsaved user-authored message.
func UserMessage(content string) Message {
	return Message{Sender: RoleUser, Content: content}
}

// AssistantMessage builds an unsaved assistant-authored message.
func AssistantMessage(content string) Message {
	return Message{Sender: RoleAssistant, Content: content}
}

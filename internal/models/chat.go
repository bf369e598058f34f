package models

import "time"

// ChatRole identifies the author of a chat message
type ChatRole string

// Chat message roles
const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// Conversation is a thread of study-assistant messages owned by one user
type Conversation struct {
	ID        string    `json:"id"` // uuid
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one message inside a conversation
type ChatMessage struct {
	ID             string    `json:"id"` // uuid
	ConversationID string    `json:"conversation_id"`
	Role           ChatRole  `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// VoiceSession is the ephemeral realtime token handed to the client. The
// server mints it and steps aside; audio never flows through the backend.
type VoiceSession struct {
	ID           string    `json:"id"`
	ClientSecret string    `json:"client_secret"`
	Model        string    `json:"model"`
	Voice        string    `json:"voice"`
	ExpiresAt    time.Time `json:"expires_at"`
}

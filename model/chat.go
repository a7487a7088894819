package model

import (
	"encoding/json"
	"time"
)

// Chat is a conversation with the assistant owned by one user
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message roles
const (
	MessageUser      = "user"
	MessageAssistant = "assistant"
)

// ChatMessage is one fully assembled message of a chat. ID is supplied by
// the client so that repeated saves of the same message are no-ops.
type ChatMessage struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Parts     json.RawMessage `json:"parts,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

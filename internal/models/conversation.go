// internal/models/conversation.go
package models

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationEntry is one message in a session's chat history.
type ConversationEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationStore holds the append-only history of a session.
type ConversationStore interface {
	Append(ctx context.Context, sessionID string, entry ConversationEntry) error
	List(ctx context.Context, sessionID string) ([]ConversationEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

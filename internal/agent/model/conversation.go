package model

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/seller-copilot/server/internal/dialogue"
)

type ConversationRepository interface {
	// AddMessage adds a message to the conversation history for the given conversation
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the conversation
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Session holds the fields that survive between turns: the accumulated
// slots and the last resolved product id.
type Session struct {
	SessionID     string         `json:"session_id"`
	Slots         dialogue.Slots `json:"slots"`
	LastProductID string         `json:"last_product_id,omitempty"`
}

type SessionRepository interface {
	// LoadSession retrieves the durable cross-turn state, an empty
	// session when none exists yet.
	LoadSession(ctx context.Context, sessionID string) (*Session, error)

	// SaveSession persists the durable cross-turn state.
	SaveSession(ctx context.Context, session *Session) error

	// ClearSession removes the durable state for a session.
	ClearSession(ctx context.Context, sessionID string) error
}

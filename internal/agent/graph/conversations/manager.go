package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/seller-copilot/server/internal/agent/model"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// Manager owns the per-session durable state: the message history used
// as dialogue context and the accumulated slots that seed each turn.
type Manager struct {
	conversationRepo model.ConversationRepository
	sessionRepo      model.SessionRepository
	maxTurns         int
}

func NewManager(conversationRepo model.ConversationRepository, sessionRepo model.SessionRepository, config model.ConversationConfig) *Manager {
	return &Manager{
		conversationRepo: conversationRepo,
		sessionRepo:      sessionRepo,
		maxTurns:         config.History.MaxTurns,
	}
}

// BeginTurn records the buyer's message and returns the rendered
// dialogue history plus the durable session state. History failures
// degrade to an empty context, the turn proceeds.
func (m *Manager) BeginTurn(ctx context.Context, sessionID, message string) (string, *model.Session) {
	if err := m.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(message)); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to save user message")
	}

	historyText := ""
	if history, err := m.conversationRepo.LoadHistory(ctx, sessionID); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to load history")
	} else {
		historyText = m.historyText(history.Messages)
	}

	session, err := m.sessionRepo.LoadSession(ctx, sessionID)
	if err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to load session, starting fresh")
		session = &model.Session{SessionID: sessionID}
	}
	return historyText, session
}

// FinishTurn records the seller's reply and persists the slots that
// must survive to the next turn.
func (m *Manager) FinishTurn(ctx context.Context, sessionID, reply string, session *model.Session) {
	if err := m.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(reply, nil)); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to save reply")
	}
	if err := m.sessionRepo.SaveSession(ctx, session); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to save session")
	}
}

// Reset drops both the history and the durable session state.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if err := m.conversationRepo.ClearHistory(ctx, sessionID); err != nil {
		return err
	}
	return m.sessionRepo.ClearSession(ctx, sessionID)
}

// historyText renders the last turns as plain dialogue lines the
// models can read.
func (m *Manager) historyText(messages []*schema.Message) string {
	recent := trimTail(messages, 2*m.maxTurns)

	var b strings.Builder
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("Покупатель: " + msg.Content + "\n")
		case schema.Assistant:
			b.WriteString("Продавец: " + msg.Content + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func trimTail(messages []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}

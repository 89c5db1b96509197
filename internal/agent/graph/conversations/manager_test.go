package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
)

type memConversationRepo struct {
	messages map[string][]*schema.Message
	fail     bool
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{messages: map[string][]*schema.Message{}}
}

func (r *memConversationRepo) AddMessage(ctx context.Context, id string, msg *schema.Message) error {
	if r.fail {
		return errors.New("redis down")
	}
	r.messages[id] = append(r.messages[id], msg)
	return nil
}

func (r *memConversationRepo) LoadHistory(ctx context.Context, id string) (*model.ConversationHistory, error) {
	if r.fail {
		return nil, errors.New("redis down")
	}
	return &model.ConversationHistory{ConversationID: id, Messages: r.messages[id]}, nil
}

func (r *memConversationRepo) ClearHistory(ctx context.Context, id string) error {
	delete(r.messages, id)
	return nil
}

func (r *memConversationRepo) GetMessageCount(ctx context.Context, id string) (int, error) {
	return len(r.messages[id]), nil
}

type memSessionRepo struct {
	sessions map[string]*model.Session
	fail     bool
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*model.Session{}}
}

func (r *memSessionRepo) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	if r.fail {
		return nil, errors.New("redis down")
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return &model.Session{SessionID: id}, nil
}

func (r *memSessionRepo) SaveSession(ctx context.Context, s *model.Session) error {
	if r.fail {
		return errors.New("redis down")
	}
	r.sessions[s.SessionID] = s
	return nil
}

func (r *memSessionRepo) ClearSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func newTestManager(maxTurns int) (*Manager, *memConversationRepo, *memSessionRepo) {
	conv := newMemConversationRepo()
	sess := newMemSessionRepo()
	cfg := model.ConversationConfig{}
	cfg.History.MaxTurns = maxTurns
	return NewManager(conv, sess, cfg), conv, sess
}

func TestManager_TurnRoundTrip(t *testing.T) {
	m, conv, _ := newTestManager(5)
	ctx := context.Background()

	history, session := m.BeginTurn(ctx, "s1", "Есть айфон?")
	assert.Equal(t, "Покупатель: Есть айфон?", history)
	require.NotNil(t, session)

	session.Slots = dialogue.Slots{ProductID: "iphone13-128"}
	session.LastProductID = "iphone13-128"
	m.FinishTurn(ctx, "s1", "Да, в наличии!", session)

	history, session = m.BeginTurn(ctx, "s1", "А за 40000?")
	assert.Equal(t, "Покупатель: Есть айфон?\nПродавец: Да, в наличии!\nПокупатель: А за 40000?", history)
	assert.Equal(t, "iphone13-128", session.Slots.ProductID, "slots persist across turns")
	assert.Equal(t, "iphone13-128", session.LastProductID)

	count, err := conv.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestManager_HistoryWindow(t *testing.T) {
	m, _, _ := newTestManager(1)
	ctx := context.Background()

	m.FinishTurn(ctx, "s1", "ответ 1", &model.Session{SessionID: "s1"})
	m.FinishTurn(ctx, "s1", "ответ 2", &model.Session{SessionID: "s1"})

	// With a one-turn window only the last two messages survive.
	history, _ := m.BeginTurn(ctx, "s1", "вопрос 3")
	assert.Equal(t, "Продавец: ответ 2\nПокупатель: вопрос 3", history)
}

func TestManager_StorageFailureDegrades(t *testing.T) {
	m, conv, sess := newTestManager(5)
	conv.fail = true
	sess.fail = true
	ctx := context.Background()

	history, session := m.BeginTurn(ctx, "s1", "Привет")
	assert.Empty(t, history, "history failures degrade to an empty context")
	require.NotNil(t, session, "a fresh session is synthesized")
	assert.Equal(t, "s1", session.SessionID)

	// FinishTurn with failing storage must not panic either.
	m.FinishTurn(ctx, "s1", "Здравствуйте!", session)
}

func TestManager_Reset(t *testing.T) {
	m, conv, sess := newTestManager(5)
	ctx := context.Background()

	_, session := m.BeginTurn(ctx, "s1", "Привет")
	session.Slots.ProductID = "iphone13-128"
	m.FinishTurn(ctx, "s1", "Здравствуйте!", session)

	require.NoError(t, m.Reset(ctx, "s1"))
	assert.Empty(t, conv.messages["s1"])
	assert.Empty(t, sess.sessions["s1"])

	_, fresh := m.BeginTurn(ctx, "s1", "Снова я")
	assert.Empty(t, fresh.Slots.ProductID)
}

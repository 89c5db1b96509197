package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seller-copilot/server/internal/agent/graph/nodes"
	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/bargaining"
	"github.com/seller-copilot/server/internal/dialogue"
	"github.com/seller-copilot/server/internal/integrations"
	"github.com/seller-copilot/server/internal/meetings"
	"github.com/seller-copilot/server/internal/product"
	"github.com/seller-copilot/server/internal/rag"
)

type stubClassifier struct {
	result model.IntentResult
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, text, history string) (model.IntentResult, error) {
	s.calls++
	return s.result, nil
}

type stubPlanner struct {
	plan  *model.ExecutionPlan
	calls int
}

func (s *stubPlanner) CreatePlan(ctx context.Context, text string, intent dialogue.Intent, entities map[string]string, history string) (*model.ExecutionPlan, error) {
	s.calls++
	return s.plan, nil
}

type stubRouter struct {
	decision model.RouteDecision
	calls    int
}

func (s *stubRouter) DecideNext(ctx context.Context, signals model.RouteSignals) (model.RouteDecision, error) {
	s.calls++
	return s.decision, nil
}

type stubGenerator struct {
	reply string
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, systemInstructions, text, contextText string) (string, error) {
	s.calls++
	return s.reply, nil
}

type stubCritic struct {
	results []model.CritiqueResult
	calls   int
}

func (s *stubCritic) Critique(ctx context.Context, in model.CritiqueInput) (model.CritiqueResult, error) {
	s.calls++
	if s.calls <= len(s.results) {
		return s.results[s.calls-1], nil
	}
	if len(s.results) > 0 {
		return s.results[len(s.results)-1], nil
	}
	return model.CritiqueResult{IsValid: true, OverallScore: 9}, nil
}

// stubIndex serves canned semantic matches over a fixed catalog.
type stubIndex struct {
	docs    []rag.Document
	results []rag.Match
}

func (s *stubIndex) Search(ctx context.Context, query string, k int) ([]rag.Match, error) {
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

func (s *stubIndex) Documents() []rag.Document { return s.docs }

type testHarness struct {
	classifier *stubClassifier
	planner    *stubPlanner
	router     *stubRouter
	generator  *stubGenerator
	critic     *stubCritic
	products   *product.Repository
}

func catalogFile(t *testing.T) string {
	t.Helper()
	items := []*product.Product{
		{
			ID: "iphone13-128", Title: "iPhone 13 128GB", Category: "Телефоны",
			Price: 45000, MinPrice: 40000, Stock: 1,
			BargainingAllowed: true, MaxDiscountPercent: 10,
			MeetingLocations: []string{"метро Юг", "ТЦ Галерея"},
		},
		{
			ID: "iphone13-256", Title: "iPhone 13 256GB", Category: "Телефоны",
			Price: 52000, MinPrice: 47000, Stock: 1,
			BargainingAllowed: true, MaxDiscountPercent: 8,
			MeetingLocations: []string{"метро Юг"},
		},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	products, err := product.NewRepository(catalogFile(t))
	require.NoError(t, err)
	return &testHarness{
		classifier: &stubClassifier{},
		planner:    &stubPlanner{},
		router:     &stubRouter{},
		generator:  &stubGenerator{reply: "Хорошо!"},
		critic:     &stubCritic{results: []model.CritiqueResult{{IsValid: true, OverallScore: 9}}},
		products:   products,
	}
}

func (h *testHarness) deps() *nodes.Deps {
	catalog := h.products.List("", false)
	docs := make([]rag.Document, 0, len(catalog))
	matches := make([]rag.Match, 0, len(catalog))
	for i, p := range catalog {
		doc := rag.Document{
			ID:   p.ID,
			Text: p.Title,
			Metadata: map[string]string{"title": p.Title, "category": p.Category},
		}
		docs = append(docs, doc)
		matches = append(matches, rag.Match{Document: doc, Score: 0.95 - 0.05*float64(i)})
	}
	index := &stubIndex{docs: docs, results: matches}

	return &nodes.Deps{
		Classifier: h.classifier,
		Planner:    h.planner,
		Router:     h.router,
		Generator:  h.generator,
		Critic:     h.critic,

		Retriever: rag.NewHybridRetriever(index, nil, nil, rag.DefaultConfig()),
		Products:  h.products,
		Delivery:  product.NewDeliveryValidator(""),
		Slots:     dialogue.NewManager(),
		Bargain:   bargaining.NewEngine(""),
		Meetings:  meetings.NewValidator(""),

		Notifier: integrations.NewTelegramNotifier("", ""),
		Calendar: integrations.NewCalendarService(false, nil),

		Seller:         model.SellerConfig{Name: "Продавец", City: "Москва"},
		ResponsePrompt: "Ты продавец на Авито.",
	}
}

func (h *testHarness) run(t *testing.T, st *model.ConversationState) *model.ConversationState {
	t.Helper()
	runnable, err := BuildGraph(context.Background(), &GraphConfig{Deps: h.deps()})
	require.NoError(t, err)

	out, err := runnable.Invoke(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestGraph_RetrievalGroundsPriceReply(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentProductInfo,
		Confidence: 0.95,
		Entities:   map[string]string{"product_name": "айфон 13"},
	}
	h.router.decision = model.RouteDecision{NextAction: nodes.NodeRAGSearch, Confidence: 0.9}
	h.generator.reply = "iPhone 13 128GB стоит 45000 руб."

	out := h.run(t, &model.ConversationState{
		SessionID:   "s0",
		UserMessage: "сколько стоит айфон 13",
	})

	assert.Equal(t, 1, h.router.calls)
	assert.Equal(t, nodes.NodeRAGSearch, out.ActionType, "only retrieval runs for a price question")
	assert.Contains(t, out.RAGResults, "iPhone 13")
	assert.Greater(t, out.RelevanceScore, 0.0)
	assert.Equal(t, "iphone13-128", out.Slots.ProductID, "the top match becomes the resolved product")
	assert.Equal(t, 1, h.generator.calls)
	assert.Equal(t, h.generator.reply, out.Response)
}

func TestGraph_BargainingReportsMissingInfo(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentBargaining,
		Confidence: 0.9,
		Entities:   map[string]string{},
	}
	h.planner.plan = &model.ExecutionPlan{
		Complexity:     "complex",
		EstimatedSteps: 1,
		Steps:          []model.PlanStep{{Index: 0, Action: nodes.NodeBargaining, Goal: "обработать предложение цены"}},
	}

	// With nothing retrievable and no prior product context the engine
	// must report what is missing instead of guessing.
	d := h.deps()
	d.Retriever = rag.NewHybridRetriever(&stubIndex{}, nil, nil, rag.DefaultConfig())
	runnable, err := BuildGraph(context.Background(), &GraphConfig{Deps: d})
	require.NoError(t, err)

	out, err := runnable.Invoke(context.Background(), &model.ConversationState{
		SessionID:   "s7",
		UserMessage: "отдам за 20000",
	})
	require.NoError(t, err)

	assert.Equal(t, nodes.NodeBargaining, out.ActionType)
	assert.Contains(t, out.ActionResult, "Не хватает информации")
	assert.Contains(t, out.ActionResult, "товар")
	assert.Contains(t, out.ActionResult, "предложенная цена")
	assert.Zero(t, out.Slots.AgreedPrice)
	assert.True(t, out.NeedsClarification)
}

func TestGraph_StockCheckResolvesVariant(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentStockCheck,
		Confidence: 0.95,
		Entities:   map[string]string{"product_name": "айфон 13", "memory": "256гб"},
	}
	h.router.decision = model.RouteDecision{NextAction: nodes.NodeStockCheck, Confidence: 0.9}
	h.generator.reply = "Да, iPhone 13 на 256 ГБ в наличии, приходите смотреть!"

	out := h.run(t, &model.ConversationState{
		SessionID:   "s1",
		UserMessage: "Привет! Есть айфон 13 на 256гб?",
	})

	assert.Equal(t, 1, h.router.calls)
	assert.Equal(t, nodes.NodeStockCheck, out.ActionType)
	assert.Equal(t, "iphone13-256", out.Slots.ProductID, "the 128GB hit is skipped for the requested variant")
	assert.Contains(t, out.ActionResult, "в наличии")
	assert.Equal(t, h.generator.reply, out.Response)
	assert.False(t, out.NeedsRegeneration)
}

func TestGraph_PlanStepsBypassRouterModel(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentBargaining,
		Confidence: 0.9,
		Entities:   map[string]string{"price": "41000"},
	}
	h.planner.plan = &model.ExecutionPlan{
		Complexity:     "complex",
		EstimatedSteps: 1,
		Steps:          []model.PlanStep{{Index: 0, Action: nodes.NodeBargaining, Goal: "обработать предложение цены"}},
	}

	out := h.run(t, &model.ConversationState{
		SessionID:   "s2",
		UserMessage: "А за 41000 отдадите?",
		Slots:       dialogue.Slots{ProductID: "iphone13-128"},
	})

	assert.Equal(t, 1, h.planner.calls)
	assert.Equal(t, 0, h.router.calls, "plan steps must not consult the routing model")
	assert.Equal(t, nodes.NodeBargaining, out.ActionType)
	// 41000 is within the 10% discount window of the 45000 listing.
	assert.Equal(t, 41000.0, out.Slots.AgreedPrice)
	assert.NotEmpty(t, out.ActionResult)
	assert.Equal(t, 1, out.CurrentStep)
}

func TestGraph_RegenerationBounded(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentGeneralQuestion,
		Confidence: 0.9,
		Entities:   map[string]string{},
	}
	h.router.decision = model.RouteDecision{NextAction: nodes.NodeGenerateResponse, Confidence: 0.9}
	h.critic.results = []model.CritiqueResult{{IsValid: false, OverallScore: 3, Issues: []string{"слишком коротко"}}}

	out := h.run(t, &model.ConversationState{
		SessionID:   "s3",
		UserMessage: "Спасибо!",
	})

	assert.Equal(t, nodes.MaxRegenerations+1, h.generator.calls, "initial attempt plus two regenerations")
	assert.Equal(t, nodes.MaxRegenerations, h.critic.calls, "the final pass skips the critic")
	assert.Equal(t, nodes.MaxRegenerations, out.RegenerationCount)
	assert.Equal(t, "max_retries_reached", out.ReflectionResult)
	assert.False(t, out.NeedsRegeneration)
	assert.NotEmpty(t, out.Response)
}

func TestGraph_UnknownRouteCoercedToResponse(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentGeneralQuestion,
		Confidence: 0.9,
		Entities:   map[string]string{},
	}
	h.router.decision = model.RouteDecision{NextAction: "launch_rocket", Confidence: 0.4}

	out := h.run(t, &model.ConversationState{
		SessionID:   "s4",
		UserMessage: "Вы кто?",
	})

	assert.Equal(t, nodes.NodeGenerateResponse, out.RoutingDecision)
	assert.Empty(t, out.ActionType, "no capability ran")
	assert.Equal(t, 1, h.generator.calls)
	assert.Equal(t, h.generator.reply, out.Response)
}

func TestGraph_ClarificationShortCircuitsGeneration(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentDeliveryQuestion,
		Confidence: 0.9,
		Entities:   map[string]string{},
	}
	h.router.decision = model.RouteDecision{NextAction: nodes.NodeGenerateResponse, Confidence: 0.8}

	out := h.run(t, &model.ConversationState{
		SessionID:   "s5",
		UserMessage: "Сколько стоит доставка?",
	})

	assert.Equal(t, 0, h.generator.calls, "clarification questions are returned verbatim")
	assert.Equal(t, 0, h.critic.calls)
	assert.Equal(t, "О каком товаре вы спрашиваете?", out.Response)
	assert.Equal(t, "clarification_question", out.ReflectionResult)
}

func TestGraph_MeetingConfirmationReservesStock(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = model.IntentResult{
		Intent:     dialogue.IntentMeetingPlanning,
		Confidence: 0.9,
		Entities:   map[string]string{"date": "завтра", "time": "вечером", "location": "метро Юг"},
	}
	h.planner.plan = &model.ExecutionPlan{
		Complexity:     "complex",
		EstimatedSteps: 1,
		Steps:          []model.PlanStep{{Index: 0, Action: nodes.NodeMeetingPlanning, Goal: "назначить встречу"}},
	}

	out := h.run(t, &model.ConversationState{
		SessionID:   "s6",
		UserMessage: "Давайте завтра вечером у метро Юг",
		Slots:       dialogue.Slots{ProductID: "iphone13-128", AgreedPrice: 41000},
	})

	assert.Equal(t, nodes.NodeMeetingPlanning, out.ActionType)
	assert.Contains(t, out.ActionResult, "Договорились!")
	assert.Contains(t, out.ActionResult, "41000")
	assert.Contains(t, out.ActionResult, "зарезервирован")

	status := h.products.CheckStock("iphone13-128")
	require.NotNil(t, status)
	assert.Equal(t, 0, status.Quantity, "confirmation reserves exactly one unit")
}

func TestBuildGraph_RejectsIncompleteDeps(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)

	h := newHarness(t)
	d := h.deps()
	d.Critic = nil
	_, err = BuildGraph(context.Background(), &GraphConfig{Deps: d})
	assert.Error(t, err)

	d = h.deps()
	d.Retriever = nil
	_, err = BuildGraph(context.Background(), &GraphConfig{Deps: d})
	assert.Error(t, err)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/seller-copilot/server/internal/agent/graph"
	"github.com/seller-copilot/server/internal/agent/graph/conversations"
	"github.com/seller-copilot/server/internal/agent/graph/nodes"
	"github.com/seller-copilot/server/internal/agent/graph/prompts"
	"github.com/seller-copilot/server/internal/agent/llm"
	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/agent/repo"
	"github.com/seller-copilot/server/internal/bargaining"
	"github.com/seller-copilot/server/internal/core"
	"github.com/seller-copilot/server/internal/dialogue"
	"github.com/seller-copilot/server/internal/integrations"
	"github.com/seller-copilot/server/internal/meetings"
	"github.com/seller-copilot/server/internal/product"
	"github.com/seller-copilot/server/internal/rag"
	logx "github.com/seller-copilot/server/pkg/logger"
	pkgredis "github.com/seller-copilot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the seller copilot,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	NLU          model.NLUModelConfig
	Response     model.ResponseModelConfig
	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig
	Seller       model.SellerConfig
	Data         model.DataConfig
	Telegram     model.TelegramConfig
	Calendar     model.CalendarConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	// Catalog and rule-driven validators.
	products, err := product.NewRepository(envCfg.Data.ProductsFile)
	if err != nil {
		log.Fatalf("Failed to load product catalog: %v", err)
	}
	delivery := product.NewDeliveryValidator(envCfg.Data.DeliveryRules)
	bargain := bargaining.NewEngine(envCfg.Data.BargainingRules)
	meetingRules := meetings.NewValidator(envCfg.Data.MeetingRules)

	// Gemini-backed NLU, response, expansion and rerank models.
	client, err := llm.NewClient(ctx, llm.Config{
		APIKey:     envCfg.APIKey,
		BaseURL:    envCfg.BaseURL,
		NLUConfig:  &envCfg.NLU,
		RespConfig: &envCfg.Response,
	})
	if err != nil {
		log.Fatalf("Failed to initialise LLM client: %v", err)
	}

	// Hybrid catalog retrieval over an in-memory vector index.
	embedder := rag.NewGeminiEmbedder(client.GenAI(), envCfg.Retrieval.EmbeddingModel)
	index := rag.NewMemoryIndex(embedder)
	if err := rag.BuildCatalogIndex(ctx, index, products); err != nil {
		log.Fatalf("Failed to index product catalog: %v", err)
	}
	var expander rag.QueryExpander
	var reranker rag.Reranker
	if envCfg.Retrieval.ExpansionOn {
		expander = client
	}
	if envCfg.Retrieval.RerankOn {
		reranker = client
	}
	retriever := rag.NewHybridRetriever(index, expander, reranker, rag.Config{
		TopK:           envCfg.Retrieval.TopK,
		MinScore:       envCfg.Retrieval.MinScore,
		SemanticWeight: envCfg.Retrieval.SemanticWeight,
		KeywordWeight:  envCfg.Retrieval.KeywordWeight,
	})

	responsePrompt, err := prompts.RenderResponseSystem(ctx, envCfg.Seller)
	if err != nil {
		log.Fatalf("Failed to render response prompt: %v", err)
	}

	manager := conversations.NewManager(
		repo.NewRedisConversationRepository(rdb, ttl),
		repo.NewRedisSessionRepository(rdb, ttl),
		envCfg.Conversation,
	)

	deps := &nodes.Deps{
		Classifier: client,
		Planner:    client,
		Router:     client,
		Generator:  client,
		Critic:     client,

		Retriever: retriever,
		Products:  products,
		Delivery:  delivery,
		Slots:     dialogue.NewManager(),
		Bargain:   bargain,
		Meetings:  meetingRules,

		Notifier: integrations.NewTelegramNotifier(envCfg.Telegram.BotToken, envCfg.Telegram.ChatID),
		Calendar: integrations.NewCalendarService(envCfg.Calendar.Enabled, meetingRules.Location()),

		Seller:         envCfg.Seller,
		ResponsePrompt: responsePrompt,

		MaxRegenerations: envCfg.Conversation.MaxRegenerations,
	}

	runner, err := graph.BuildResponseGraph(ctx, graph.GraphConfig{
		Deps:         deps,
		Manager:      manager,
		Conversation: envCfg.Conversation,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	runDemo(ctx, runner)
}

// runDemo drives one scripted buyer conversation through the graph, the
// same way a marketplace webhook would feed messages in.
func runDemo(ctx context.Context, runner graph.Runner) {
	queries := []struct {
		description string
		query       string
	}{
		{
			description: "Product availability with memory variant",
			query:       "Привет! Есть айфон 13 на 256гб?",
		},
		{
			description: "Price negotiation",
			query:       "А за 40000 отдадите?",
		},
		{
			description: "Meeting planning",
			query:       "Хорошо, давайте завтра вечером у метро Юг",
		},
	}

	sessionID := fmt.Sprintf("demo-%s", uuid.NewString())
	fmt.Printf("Session: %s\n", sessionID)

	for i, test := range queries {
		fmt.Printf("\nTurn %d: %s\n", i+1, test.description)
		fmt.Printf("Покупатель: %s\n", test.query)

		response, err := runner.Invoke(ctx, model.QueryInput{
			SessionID: sessionID,
			Query:     test.query,
		})
		if err != nil {
			logx.Error().Err(err).Int("turn", i+1).Msg("Turn failed")
			os.Exit(1)
		}

		fmt.Printf("Продавец: %s\n", response)
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("\nDemo conversation finished.")
}

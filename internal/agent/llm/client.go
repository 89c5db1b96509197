package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/seller-copilot/server/internal/agent/graph/parsers"
	"github.com/seller-copilot/server/internal/agent/graph/prompts"
	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
	"github.com/seller-copilot/server/internal/rag"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// Config holds everything needed to build the Gemini-backed client.
type Config struct {
	APIKey     string
	BaseURL    string
	NLUConfig  *model.NLUModelConfig
	RespConfig *model.ResponseModelConfig
}

// Client implements every model-facing contract of the orchestration
// graph on top of two Gemini chat models: a cheap low-temperature one
// for structured decisions and a response model for buyer-facing text.
type Client struct {
	client    *genai.Client
	nlu       *gemini.ChatModel
	response  *gemini.ChatModel
	nluModel  string
	respModel string
}

func NewClient(ctx context.Context, config Config) (*Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	nlu, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.NLUConfig.Model,
		Temperature: &config.NLUConfig.Temperature,
		MaxTokens:   &config.NLUConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating NLU model")
		return nil, fmt.Errorf("error creating NLU model: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	return &Client{
		client:    client,
		nlu:       nlu,
		response:  response,
		nluModel:  config.NLUConfig.Model,
		respModel: config.RespConfig.Model,
	}, nil
}

// GenAI exposes the underlying client for the embedding component.
func (c *Client) GenAI() *genai.Client {
	return c.client
}

func (c *Client) generate(ctx context.Context, cm *gemini.ChatModel, modelName, operation string, msgs []*schema.Message) (string, error) {
	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		in, outCost, total := model.ComputeCost(out.ResponseMeta.Usage, model.ResolvePricing(modelName))
		logx.Debug().
			Str("operation", operation).
			Str("model", modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Float64("input_cost_usd", in).
			Float64("output_cost_usd", outCost).
			Float64("total_cost_usd", total).
			Msg("LLM call complete")
	}
	return out.Content, nil
}

var _ model.Classifier = (*Client)(nil)

func (c *Client) Classify(ctx context.Context, text, history string) (model.IntentResult, error) {
	userPrompt := fmt.Sprintf("Сообщение пользователя: %s", text)
	if history != "" {
		userPrompt += fmt.Sprintf("\n\nКонтекст предыдущих сообщений:\n%s", history)
		userPrompt += "\n\nУчитывай контекст! Если пользователь дает короткий ответ, вероятно это уточнение к предыдущему вопросу."
	}
	content, err := c.generate(ctx, c.nlu, c.nluModel, "classify_intent", []*schema.Message{
		schema.SystemMessage(prompts.ClassifierSystem()),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return model.IntentResult{}, err
	}
	return parsers.ParseIntentResult(content)
}

var _ model.Planner = (*Client)(nil)

func (c *Client) CreatePlan(ctx context.Context, text string, intent dialogue.Intent, entities map[string]string, history string) (*model.ExecutionPlan, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "ЗАПРОС ПОЛЬЗОВАТЕЛЯ: %s\n\nОПРЕДЕЛЕННОЕ НАМЕРЕНИЕ: %s\n\nИЗВЛЕЧЕННЫЕ СУЩНОСТИ: %v\n", text, intent, entities)
	if history != "" {
		fmt.Fprintf(&b, "\nКОНТЕКСТ БЕСЕДЫ:\n%s\n", history)
	}
	b.WriteString("\nСОСТАВЬ ОПТИМАЛЬНЫЙ ПЛАН ВЫПОЛНЕНИЯ ЭТОГО ЗАПРОСА.")

	content, err := c.generate(ctx, c.nlu, c.nluModel, "create_plan", []*schema.Message{
		schema.SystemMessage(prompts.PlannerSystem()),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return nil, err
	}
	return parsers.ParsePlan(content)
}

var _ model.Router = (*Client)(nil)

func (c *Client) DecideNext(ctx context.Context, signals model.RouteSignals) (model.RouteDecision, error) {
	yesNo := func(v bool) string {
		if v {
			return "Да"
		}
		return "Нет"
	}
	missing := "нет"
	if len(signals.MissingSlots) > 0 {
		missing = strings.Join(signals.MissingSlots, ", ")
	}
	userPrompt := fmt.Sprintf(`ТЕКУЩЕЕ СОСТОЯНИЕ:
- Сообщение пользователя: %s
- Намерение: %s
- Уверенность в намерении: %.2f
- Слоты заполнены: %s
- Недостающие слоты: %s
- Есть результаты поиска: %s
- Есть результат действия: %s

ЗАДАЧА: Определи, какой узел вызвать следующим для оптимальной обработки запроса.`,
		signals.Text, signals.Intent, signals.Confidence,
		yesNo(signals.SlotsComplete), missing,
		yesNo(signals.HasRetrieval), yesNo(signals.HasAction))

	content, err := c.generate(ctx, c.nlu, c.nluModel, "route_decision", []*schema.Message{
		schema.SystemMessage(prompts.RouterSystem()),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return model.RouteDecision{}, err
	}
	return parsers.ParseRouteDecision(content)
}

var _ model.Generator = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, systemInstructions, text, contextText string) (string, error) {
	msgs := []*schema.Message{schema.SystemMessage(systemInstructions)}
	if contextText != "" {
		msgs = append(msgs, schema.SystemMessage(fmt.Sprintf("Контекст: %s", contextText)))
	}
	msgs = append(msgs, schema.UserMessage(text))
	return c.generate(ctx, c.response, c.respModel, "generate_response", msgs)
}

var _ model.Critic = (*Client)(nil)

func (c *Client) Critique(ctx context.Context, in model.CritiqueInput) (model.CritiqueResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "ОТВЕТ ДЛЯ ПРОВЕРКИ:\n%s\n\nИСХОДНЫЙ ЗАПРОС ПОЛЬЗОВАТЕЛЯ:\n%s\n\nНАМЕРЕНИЕ: %s\n", in.Reply, in.Text, in.Intent)
	if in.Context != "" {
		fmt.Fprintf(&b, "\nКОНТЕКСТ/ИНФОРМАЦИЯ ИЗ БАЗЫ:\n%s\n", in.Context)
	}
	if in.ActionResult != "" {
		fmt.Fprintf(&b, "\nРЕЗУЛЬТАТ ДЕЙСТВИЯ:\n%s\n", in.ActionResult)
	}
	b.WriteString("\nПРОВЕДИ КРИТИЧЕСКУЮ ОЦЕНКУ ОТВЕТА.")

	content, err := c.generate(ctx, c.nlu, c.nluModel, "validate_response", []*schema.Message{
		schema.SystemMessage(prompts.CriticSystem()),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return model.CritiqueResult{}, err
	}
	return parsers.ParseCritique(content)
}

var _ rag.QueryExpander = (*Client)(nil)

func (c *Client) Expand(ctx context.Context, query string) (string, error) {
	content, err := c.generate(ctx, c.nlu, c.nluModel, "expand_query", []*schema.Message{
		schema.SystemMessage(prompts.ExpanderSystem()),
		schema.UserMessage(query),
	})
	if err != nil {
		return "", err
	}
	expanded := strings.TrimSpace(content)
	if expanded == "" {
		return query, nil
	}
	return expanded, nil
}

var _ rag.Reranker = (*Client)(nil)

func (c *Client) Rerank(ctx context.Context, query string, candidates []rag.ScoredMatch) ([]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "ЗАПРОС: %s\n\nКАНДИДАТЫ:\n", query)
	for i, m := range candidates {
		title := m.Metadata["title"]
		if title == "" {
			title = m.ProductID
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	content, err := c.generate(ctx, c.nlu, c.nluModel, "rerank", []*schema.Message{
		schema.SystemMessage(prompts.RerankerSystem()),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return nil, err
	}
	return parsers.ParseRerankScores(content)
}

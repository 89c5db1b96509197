package model

// ================ Config ================
type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"30m"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"5"`
	}
	MaxRegenerations int `envconfig:"CONVERSATION_MAX_REGENERATIONS" default:"2"`
}

type NLUModelConfig struct {
	Model       string  `envconfig:"NLU_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"NLU_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"NLU_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
}

type RetrievalConfig struct {
	EmbeddingModel  string  `envconfig:"RAG_EMBEDDING_MODEL" default:"text-embedding-004"`
	TopK            int     `envconfig:"RAG_TOP_K" default:"3"`
	MinScore        float64 `envconfig:"RAG_MIN_SCORE" default:"0.35"`
	SemanticWeight  float64 `envconfig:"RAG_SEMANTIC_WEIGHT" default:"0.4"`
	KeywordWeight   float64 `envconfig:"RAG_KEYWORD_WEIGHT" default:"0.6"`
	ExpansionOn     bool    `envconfig:"RAG_QUERY_EXPANSION" default:"true"`
	RerankOn        bool    `envconfig:"RAG_RERANK" default:"true"`
}

type SellerConfig struct {
	Name               string `envconfig:"SELLER_NAME" default:"Продавец"`
	City               string `envconfig:"SELLER_CITY" default:"Москва"`
	ProfessionalSeller bool   `envconfig:"SELLER_PROFESSIONAL" default:"false"`
}

type DataConfig struct {
	ProductsFile    string `envconfig:"DATA_PRODUCTS_FILE" default:"data/products.json"`
	BargainingRules string `envconfig:"DATA_BARGAINING_RULES" default:"data/bargaining_rules.yaml"`
	DeliveryRules   string `envconfig:"DATA_DELIVERY_RULES" default:"data/delivery_rules.yaml"`
	MeetingRules    string `envconfig:"DATA_MEETING_RULES" default:"data/meeting_rules.yaml"`
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
}

type CalendarConfig struct {
	Enabled bool `envconfig:"CALENDAR_ENABLED" default:"false"`
}

package model

import (
	"context"

	"github.com/seller-copilot/server/internal/dialogue"
)

// IntentResult is the classifier's verdict for one utterance.
type IntentResult struct {
	Intent     dialogue.Intent   `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

// Classifier extracts intent and entities from raw text.
type Classifier interface {
	Classify(ctx context.Context, text, history string) (IntentResult, error)
}

// Planner builds a multi-step execution plan for complex requests.
type Planner interface {
	CreatePlan(ctx context.Context, text string, intent dialogue.Intent, entities map[string]string, history string) (*ExecutionPlan, error)
}

// RouteSignals is everything the router is allowed to see when no plan
// dictates the next step.
type RouteSignals struct {
	Intent        dialogue.Intent
	Confidence    float64
	SlotsComplete bool
	MissingSlots  []string
	HasRetrieval  bool
	HasAction     bool
	Text          string
}

// RouteDecision names the next capability to run.
type RouteDecision struct {
	NextAction   string   `json:"next_action"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"`
}

// Router picks the next action when the plan is exhausted or absent.
type Router interface {
	DecideNext(ctx context.Context, signals RouteSignals) (RouteDecision, error)
}

// Generator produces the seller's reply from instructions and context.
type Generator interface {
	Generate(ctx context.Context, systemInstructions, text, contextText string) (string, error)
}

// CritiqueInput carries everything the critic needs to judge a reply.
type CritiqueInput struct {
	Reply        string
	Text         string
	Context      string
	ActionResult string
	Intent       dialogue.Intent
}

// CritiqueResult is the critic's structured verdict.
type CritiqueResult struct {
	IsValid       bool     `json:"is_valid"`
	OverallScore  float64  `json:"overall_score"`
	Issues        []string `json:"issues"`
	CriticalError string   `json:"critical_error"`
}

// Critic validates a generated reply against the grounding context.
type Critic interface {
	Critique(ctx context.Context, in CritiqueInput) (CritiqueResult, error)
}

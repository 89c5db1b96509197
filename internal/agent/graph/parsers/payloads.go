package parsers

import (
	"fmt"
	"math"
	"strings"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
)

// ParseIntentResult decodes the classifier payload:
// {"intent": "...", "confidence": 0.9, "entities": {"k": "v"}}.
// Unknown intents map to general_question.
func ParseIntentResult(content string) (model.IntentResult, error) {
	var raw struct {
		Intent     string            `json:"intent"`
		Confidence float64           `json:"confidence"`
		Entities   map[string]string `json:"entities"`
	}
	if err := decodeJSON(content, "classifier", &raw); err != nil {
		return model.IntentResult{}, err
	}
	out := model.IntentResult{
		Intent:     dialogue.ParseIntent(raw.Intent),
		Confidence: clamp01(raw.Confidence),
		Entities:   raw.Entities,
	}
	if out.Entities == nil {
		out.Entities = map[string]string{}
	}
	return out, nil
}

// ParsePlan decodes the planner payload. Steps get sequential indexes
// when the model omits or scrambles them.
func ParsePlan(content string) (*model.ExecutionPlan, error) {
	var raw struct {
		Complexity     string `json:"complexity"`
		EstimatedSteps int    `json:"estimated_steps"`
		Steps          []struct {
			Index  int    `json:"index"`
			Action string `json:"action"`
			Goal   string `json:"goal"`
		} `json:"steps"`
	}
	if err := decodeJSON(content, "planner", &raw); err != nil {
		return nil, err
	}
	if len(raw.Steps) == 0 {
		return nil, fmt.Errorf("planner: empty steps")
	}
	if len(raw.Steps) > maxListItems {
		raw.Steps = raw.Steps[:maxListItems]
	}

	plan := &model.ExecutionPlan{
		Complexity:     raw.Complexity,
		EstimatedSteps: raw.EstimatedSteps,
	}
	for i, s := range raw.Steps {
		action := strings.TrimSpace(s.Action)
		if action == "" {
			return nil, fmt.Errorf("planner: step %d has no action", i)
		}
		plan.Steps = append(plan.Steps, model.PlanStep{Index: i, Action: action, Goal: strings.TrimSpace(s.Goal)})
	}
	if plan.EstimatedSteps <= 0 {
		plan.EstimatedSteps = len(plan.Steps)
	}
	return plan, nil
}

// ParseRouteDecision decodes the router payload. Action-set coercion is
// the caller's concern; this only guarantees well-formed fields.
func ParseRouteDecision(content string) (model.RouteDecision, error) {
	var raw model.RouteDecision
	if err := decodeJSON(content, "router", &raw); err != nil {
		return model.RouteDecision{}, err
	}
	raw.NextAction = strings.TrimSpace(raw.NextAction)
	if raw.NextAction == "" {
		return model.RouteDecision{}, fmt.Errorf("router: empty next_action")
	}
	raw.Confidence = clamp01(raw.Confidence)
	raw.Alternatives = capList(raw.Alternatives)
	return raw, nil
}

// ParseCritique decodes the critic payload. Scores are clamped into
// [0, 10].
func ParseCritique(content string) (model.CritiqueResult, error) {
	var raw model.CritiqueResult
	if err := decodeJSON(content, "critic", &raw); err != nil {
		return model.CritiqueResult{}, err
	}
	if math.IsNaN(raw.OverallScore) || raw.OverallScore < 0 {
		raw.OverallScore = 0
	}
	if raw.OverallScore > 10 {
		raw.OverallScore = 10
	}
	raw.Issues = capList(raw.Issues)
	return raw, nil
}

// ParseRerankScores decodes the reranker payload:
// {"scores": [0.8, 0.2, ...]}. The caller checks the count against its
// candidate list.
func ParseRerankScores(content string) ([]float64, error) {
	var raw struct {
		Scores []float64 `json:"scores"`
	}
	if err := decodeJSON(content, "reranker", &raw); err != nil {
		return nil, err
	}
	if len(raw.Scores) == 0 {
		return nil, fmt.Errorf("reranker: empty scores")
	}
	for i, s := range raw.Scores {
		raw.Scores[i] = clamp01(s)
	}
	return raw.Scores, nil
}

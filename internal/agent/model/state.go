package model

import (
	"github.com/seller-copilot/server/internal/dialogue"
)

// PlanStep is one capability invocation in an execution plan.
type PlanStep struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Goal   string `json:"goal"`
}

// ExecutionPlan is the ordered multi-step strategy produced for
// complex requests.
type ExecutionPlan struct {
	Complexity     string     `json:"complexity"`
	Steps          []PlanStep `json:"steps"`
	EstimatedSteps int        `json:"estimated_steps"`
}

// HasRemaining reports whether the cursor still points at an
// unexecuted step.
func (p *ExecutionPlan) HasRemaining(currentStep int) bool {
	return p != nil && currentStep < len(p.Steps)
}

// ConversationState is the single record threaded through the
// orchestration graph. It is created fresh for every incoming
// utterance, seeded with the durable cross-turn fields (accumulated
// slots and the last resolved product id).
type ConversationState struct {
	// Identity.
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
	History     string `json:"history,omitempty"`

	// Understanding.
	Intent           dialogue.Intent   `json:"intent"`
	IntentConfidence float64           `json:"intent_confidence"`
	Entities         map[string]string `json:"entities,omitempty"`

	// Slots.
	Slots                 dialogue.Slots `json:"slots"`
	SlotsComplete         bool           `json:"slots_complete"`
	MissingSlots          []string       `json:"missing_slots,omitempty"`
	NeedsClarification    bool           `json:"needs_clarification"`
	ClarificationQuestion string         `json:"clarification_question,omitempty"`

	// Retrieval and capability outputs.
	RAGResults     string  `json:"rag_results,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	ActionResult   string  `json:"action_result,omitempty"`
	ActionType     string  `json:"action_type,omitempty"`

	// Planning.
	Plan           *ExecutionPlan `json:"plan,omitempty"`
	CurrentStep    int            `json:"current_step"`
	PlanComplexity string         `json:"plan_complexity,omitempty"`
	CompletedSteps []string       `json:"completed_steps,omitempty"`

	// Routing.
	RoutingDecision   string   `json:"routing_decision,omitempty"`
	RoutingReasoning  string   `json:"routing_reasoning,omitempty"`
	RoutingConfidence float64  `json:"routing_confidence"`
	AlternativeRoutes []string `json:"alternative_routes,omitempty"`

	// Response and quality.
	Response             string  `json:"response,omitempty"`
	ReflectionResult     string  `json:"reflection_result,omitempty"`
	ResponseQualityScore float64 `json:"response_quality_score"`
	NeedsRegeneration    bool    `json:"needs_regeneration"`
	RegenerationCount    int     `json:"regeneration_count"`
}

// StateDelta is a typed partial update produced by one graph node.
// Pointer fields distinguish "not touched" from "set to zero value".
type StateDelta struct {
	Intent           *dialogue.Intent
	IntentConfidence *float64
	Entities         map[string]string

	Slots                 *dialogue.Slots
	SlotsComplete         *bool
	MissingSlots          *[]string
	NeedsClarification    *bool
	ClarificationQuestion *string

	RAGResults     *string
	RelevanceScore *float64
	ActionResult   *string
	ActionType     *string

	Plan           *ExecutionPlan
	CurrentStep    *int
	PlanComplexity *string
	CompletedStep  *string

	RoutingDecision   *string
	RoutingReasoning  *string
	RoutingConfidence *float64
	AlternativeRoutes *[]string

	Response             *string
	ReflectionResult     *string
	ResponseQualityScore *float64
	NeedsRegeneration    *bool
	RegenerationCount    *int
}

// Apply merges a node's partial output into the state field by field.
// Untouched fields keep their previous values.
func (s *ConversationState) Apply(d StateDelta) {
	if d.Intent != nil {
		s.Intent = *d.Intent
	}
	if d.IntentConfidence != nil {
		s.IntentConfidence = *d.IntentConfidence
	}
	if d.Entities != nil {
		s.Entities = d.Entities
	}
	if d.Slots != nil {
		s.Slots = *d.Slots
	}
	if d.SlotsComplete != nil {
		s.SlotsComplete = *d.SlotsComplete
	}
	if d.MissingSlots != nil {
		s.MissingSlots = *d.MissingSlots
	}
	if d.NeedsClarification != nil {
		s.NeedsClarification = *d.NeedsClarification
	}
	if d.ClarificationQuestion != nil {
		s.ClarificationQuestion = *d.ClarificationQuestion
	}
	if d.RAGResults != nil {
		s.RAGResults = *d.RAGResults
	}
	if d.RelevanceScore != nil {
		s.RelevanceScore = *d.RelevanceScore
	}
	if d.ActionResult != nil {
		s.ActionResult = *d.ActionResult
	}
	if d.ActionType != nil {
		s.ActionType = *d.ActionType
	}
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	if d.CurrentStep != nil {
		s.CurrentStep = *d.CurrentStep
	}
	if d.PlanComplexity != nil {
		s.PlanComplexity = *d.PlanComplexity
	}
	if d.CompletedStep != nil {
		s.CompletedSteps = append(s.CompletedSteps, *d.CompletedStep)
	}
	if d.RoutingDecision != nil {
		s.RoutingDecision = *d.RoutingDecision
	}
	if d.RoutingReasoning != nil {
		s.RoutingReasoning = *d.RoutingReasoning
	}
	if d.RoutingConfidence != nil {
		s.RoutingConfidence = *d.RoutingConfidence
	}
	if d.AlternativeRoutes != nil {
		s.AlternativeRoutes = *d.AlternativeRoutes
	}
	if d.Response != nil {
		s.Response = *d.Response
	}
	if d.ReflectionResult != nil {
		s.ReflectionResult = *d.ReflectionResult
	}
	if d.ResponseQualityScore != nil {
		s.ResponseQualityScore = *d.ResponseQualityScore
	}
	if d.NeedsRegeneration != nil {
		s.NeedsRegeneration = *d.NeedsRegeneration
	}
	if d.RegenerationCount != nil {
		s.RegenerationCount = *d.RegenerationCount
	}
}

// QueryInput is the public input of one conversation turn.
type QueryInput struct {
	SessionID string
	Query     string
}

// TurnStats is the graph-local bookkeeping for a single turn.
type TurnStats struct {
	SessionID    string
	RouterVisits int
	NodesVisited []string
}

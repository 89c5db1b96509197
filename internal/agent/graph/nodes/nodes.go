package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// NewClassifyIntentNode determines intent and extracts entities from
// the buyer's message. Classification failures fall back to
// general_question so the turn continues.
func NewClassifyIntentNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		result, err := deps.Classifier.Classify(ctx, st.UserMessage, st.History)
		if err != nil {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Intent classification failed, using fallback")
			result = model.IntentResult{
				Intent:     dialogue.IntentGeneralQuestion,
				Confidence: 0.5,
				Entities:   map[string]string{},
			}
		}
		logx.Info().
			Str("sessionID", st.SessionID).
			Str("intent", string(result.Intent)).
			Float64("confidence", result.Confidence).
			Msg("Intent classified")

		st.Apply(model.StateDelta{
			Intent:           &result.Intent,
			IntentConfidence: &result.Confidence,
			Entities:         result.Entities,
		})
		return st, nil
	})
}

// NewCheckSlotsNode merges extracted entities into the accumulated
// slots and checks intent requirements.
func NewCheckSlotsNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		updated := deps.Slots.Extract(st.Entities, st.Slots)

		isComplete, missing := deps.Slots.CheckCompleteness(st.Intent, updated)
		needsClarification := !isComplete
		clarification := ""
		if !isComplete {
			clarification = deps.Slots.Clarification(missing)
			logx.Debug().Str("sessionID", st.SessionID).Strs("missing", missing).Msg("Slots incomplete")
		}

		st.Apply(model.StateDelta{
			Slots:                 &updated,
			SlotsComplete:         &isComplete,
			MissingSlots:          &missing,
			NeedsClarification:    &needsClarification,
			ClarificationQuestion: &clarification,
		})
		return st, nil
	})
}

// NewPlanningNode builds a multi-step plan for complex requests. A
// planner failure degrades to the canonical retrieve-then-respond
// plan so the state never lacks a usable plan.
func NewPlanningNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		plan, err := deps.Planner.CreatePlan(ctx, st.UserMessage, st.Intent, st.Entities, st.History)
		if err != nil || plan == nil || len(plan.Steps) == 0 {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Planning failed, using fallback plan")
			plan = &model.ExecutionPlan{
				Complexity:     "simple",
				EstimatedSteps: 2,
				Steps: []model.PlanStep{
					{Index: 0, Action: NodeRAGSearch, Goal: "Найти информацию"},
					{Index: 1, Action: NodeGenerateResponse, Goal: "Ответить пользователю"},
				},
			}
		}
		logx.Info().
			Str("sessionID", st.SessionID).
			Str("complexity", plan.Complexity).
			Int("steps", len(plan.Steps)).
			Msg("Plan created")

		zero := 0
		st.Apply(model.StateDelta{
			Plan:           plan,
			CurrentStep:    &zero,
			PlanComplexity: &plan.Complexity,
		})
		return st, nil
	})
}

// NewRouterNode picks the next capability. Plan steps take precedence
// and need no external call; otherwise the router contract decides.
func NewRouterNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		if st.Plan.HasRemaining(st.CurrentStep) {
			step := st.Plan.Steps[st.CurrentStep]
			action := coerceAction(step.Action)
			next := st.CurrentStep + 1
			reasoning := fmt.Sprintf("Выполнение шага %d плана", next)
			confidence := 0.9

			logx.Debug().
				Str("sessionID", st.SessionID).
				Int("step", next).
				Int("total", len(st.Plan.Steps)).
				Str("action", action).
				Msg("Following plan")

			st.Apply(model.StateDelta{
				RoutingDecision:   &action,
				RoutingReasoning:  &reasoning,
				RoutingConfidence: &confidence,
				CurrentStep:       &next,
				CompletedStep:     &action,
			})
			return st, nil
		}

		decision, err := deps.Router.DecideNext(ctx, model.RouteSignals{
			Intent:        st.Intent,
			Confidence:    st.IntentConfidence,
			SlotsComplete: st.SlotsComplete,
			MissingSlots:  st.MissingSlots,
			HasRetrieval:  st.RAGResults != "",
			HasAction:     st.ActionResult != "",
			Text:          st.UserMessage,
		})
		if err != nil {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Routing failed, defaulting to retrieval")
			decision = model.RouteDecision{
				NextAction: NodeRAGSearch,
				Confidence: 0.5,
				Reasoning:  "Fallback из-за ошибки маршрутизации",
			}
		}
		action := coerceAction(decision.NextAction)
		logx.Info().
			Str("sessionID", st.SessionID).
			Str("action", action).
			Float64("confidence", decision.Confidence).
			Msg("Routing decision")

		st.Apply(model.StateDelta{
			RoutingDecision:   &action,
			RoutingReasoning:  &decision.Reasoning,
			RoutingConfidence: &decision.Confidence,
			AlternativeRoutes: &decision.Alternatives,
		})
		return st, nil
	})
}

package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// complexIntents always require multi-step execution.
var complexIntents = map[dialogue.Intent]bool{
	dialogue.IntentBargaining:      true,
	dialogue.IntentMeetingPlanning: true,
}

// productDependentIntents need a resolved product id before their
// capability can run.
var productDependentIntents = map[dialogue.Intent]bool{
	dialogue.IntentDeliveryQuestion: true,
	dialogue.IntentBargaining:       true,
	dialogue.IntentWarrantyQuestion: true,
	dialogue.IntentMeetingPlanning:  true,
}

// NewComplexityCondition routes after slot checking: complex requests
// go through planning, simple ones straight to the router. Rules are
// tried in order, first match wins.
func NewComplexityCondition() *compose.GraphBranch {
	condition := func(ctx context.Context, st *model.ConversationState) (string, error) {
		switch {
		case complexIntents[st.Intent]:
			logx.Debug().Str("intent", string(st.Intent)).Msg("Complex intent, planning required")
			return NodePlanning, nil
		case productDependentIntents[st.Intent] && st.Slots.ProductName != "" && st.Slots.ProductID == "":
			logx.Debug().Str("product", st.Slots.ProductName).Msg("Product lookup must precede action, planning required")
			return NodePlanning, nil
		case st.IntentConfidence < 0.7 && !st.SlotsComplete:
			logx.Debug().Float64("confidence", st.IntentConfidence).Msg("Ambiguous request, planning required")
			return NodePlanning, nil
		default:
			return NodeRouter, nil
		}
	}
	return compose.NewGraphBranch(condition, map[string]bool{
		NodePlanning: true,
		NodeRouter:   true,
	})
}

// NewRouterCondition dispatches to the capability the router picked.
func NewRouterCondition() *compose.GraphBranch {
	condition := func(ctx context.Context, st *model.ConversationState) (string, error) {
		return coerceAction(st.RoutingDecision), nil
	}
	return compose.NewGraphBranch(condition, map[string]bool{
		NodeRAGSearch:        true,
		NodeStockCheck:       true,
		NodeDeliveryCheck:    true,
		NodeBargaining:       true,
		NodeMeetingPlanning:  true,
		NodeGenerateResponse: true,
	})
}

// NewAfterActionCondition loops back to the router while the plan has
// unexecuted steps, otherwise proceeds to response generation.
func NewAfterActionCondition() *compose.GraphBranch {
	condition := func(ctx context.Context, st *model.ConversationState) (string, error) {
		if st.Plan.HasRemaining(st.CurrentStep) {
			logx.Debug().
				Int("step", st.CurrentStep).
				Int("total", len(st.Plan.Steps)).
				Msg("Plan unfinished, returning to router")
			return NodeRouter, nil
		}
		return NodeGenerateResponse, nil
	}
	return compose.NewGraphBranch(condition, map[string]bool{
		NodeRouter:           true,
		NodeGenerateResponse: true,
	})
}

// NewAfterReflectionCondition ends the turn or loops back for a
// bounded regeneration.
func NewAfterReflectionCondition() *compose.GraphBranch {
	condition := func(ctx context.Context, st *model.ConversationState) (string, error) {
		if st.NeedsRegeneration {
			logx.Debug().Int("regeneration", st.RegenerationCount).Msg("Regenerating response")
			return NodeGenerateResponse, nil
		}
		return compose.END, nil
	}
	return compose.NewGraphBranch(condition, map[string]bool{
		NodeGenerateResponse: true,
		compose.END:          true,
	})
}

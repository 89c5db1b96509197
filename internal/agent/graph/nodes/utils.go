package nodes

// Graph node names.
const (
	NodeClassifyIntent   = "classify_intent"
	NodeCheckSlots       = "check_slots"
	NodePlanning         = "planning"
	NodeRouter           = "intelligent_router"
	NodeRAGSearch        = "rag_search"
	NodeStockCheck       = "stock_check"
	NodeDeliveryCheck    = "delivery_check"
	NodeBargaining       = "bargaining"
	NodeMeetingPlanning  = "meeting_planning"
	NodeGenerateResponse = "generate_response"
	NodeReflection       = "reflection"
)

// MaxRegenerations bounds the reflection loop. Once spent, validation
// is forced to pass.
const MaxRegenerations = 2

// validActions is the fixed capability set the router may pick from.
var validActions = map[string]bool{
	NodeRAGSearch:        true,
	NodeStockCheck:       true,
	NodeDeliveryCheck:    true,
	NodeBargaining:       true,
	NodeMeetingPlanning:  true,
	NodeGenerateResponse: true,
}

// coerceAction maps any out-of-set routing value to the safe default.
func coerceAction(action string) string {
	if validActions[action] {
		return action
	}
	return NodeGenerateResponse
}

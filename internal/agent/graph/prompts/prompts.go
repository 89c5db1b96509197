package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/seller-copilot/server/internal/agent/model"
)

//go:embed template/classifier_prompt.txt
var classifierSystemPrompt string

//go:embed template/planner_prompt.txt
var plannerSystemPrompt string

//go:embed template/router_prompt.txt
var routerSystemPrompt string

//go:embed template/response_prompt.txt
var responseSystemPrompt string

//go:embed template/critic_prompt.txt
var criticSystemPrompt string

//go:embed template/expander_prompt.txt
var expanderSystemPrompt string

//go:embed template/reranker_prompt.txt
var rerankerSystemPrompt string

// Static system prompts need no variables; exported as-is.
func ClassifierSystem() string { return classifierSystemPrompt }
func PlannerSystem() string    { return plannerSystemPrompt }
func RouterSystem() string     { return routerSystemPrompt }
func CriticSystem() string     { return criticSystemPrompt }
func ExpanderSystem() string   { return expanderSystemPrompt }
func RerankerSystem() string   { return rerankerSystemPrompt }

// RenderResponseSystem renders the seller persona prompt via the Eino
// prompt component so Prompt callbacks fire.
func RenderResponseSystem(ctx context.Context, seller model.SellerConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(responseSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"SellerName": seller.Name,
		"City":       seller.City,
	})
	if err != nil {
		return "", fmt.Errorf("response prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("response prompt render: empty result")
	}
	return msgs[0].Content, nil
}

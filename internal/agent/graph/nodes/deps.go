package nodes

import (
	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/bargaining"
	"github.com/seller-copilot/server/internal/dialogue"
	"github.com/seller-copilot/server/internal/integrations"
	"github.com/seller-copilot/server/internal/meetings"
	"github.com/seller-copilot/server/internal/product"
	"github.com/seller-copilot/server/internal/rag"
)

// Deps bundles every collaborator the graph nodes call. All of them
// are constructed once at startup and injected; nodes hold no globals.
type Deps struct {
	Classifier model.Classifier
	Planner    model.Planner
	Router     model.Router
	Generator  model.Generator
	Critic     model.Critic

	Retriever *rag.HybridRetriever
	Products  *product.Repository
	Delivery  *product.DeliveryValidator
	Slots     *dialogue.Manager
	Bargain   *bargaining.Engine
	Meetings  *meetings.Validator

	Notifier *integrations.TelegramNotifier
	Calendar *integrations.CalendarService

	Seller         model.SellerConfig
	ResponsePrompt string

	// MaxRegenerations overrides the default reflection budget when positive.
	MaxRegenerations int
}

func (d *Deps) regenerationBudget() int {
	if d.MaxRegenerations > 0 {
		return d.MaxRegenerations
	}
	return MaxRegenerations
}

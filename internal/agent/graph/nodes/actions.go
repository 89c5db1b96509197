package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/bargaining"
	"github.com/seller-copilot/server/internal/rag"
	logx "github.com/seller-copilot/server/pkg/logger"
)

const unresolvedProductMessage = "Не смог определить, о каком товаре речь. Уточните название товара."

// resolveProductID finds the product the buyer means: the already
// resolved id wins, otherwise a narrow retrieval over the message.
func resolveProductID(ctx context.Context, deps *Deps, st *model.ConversationState, query string) string {
	if st.Slots.ProductID != "" {
		return st.Slots.ProductID
	}
	matches, err := deps.Retriever.RetrieveN(ctx, query, 1)
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0].ProductID
}

// lastSellerLine extracts the most recent seller reply from formatted
// dialogue history.
func lastSellerLine(history string) string {
	lines := strings.Split(history, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(lines[i], "Продавец: "); ok {
			return rest
		}
	}
	return ""
}

// NewRAGSearchNode retrieves grounding context for the turn. A
// resolved product id short-circuits search with the full listing card.
func NewRAGSearchNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		actionType := NodeRAGSearch

		if st.Slots.ProductID != "" {
			if card, ok := rag.ProductContext(deps.Products, st.Slots.ProductID); ok {
				logx.Debug().Str("sessionID", st.SessionID).Str("productID", st.Slots.ProductID).Msg("Using resolved product context")
				one := 1.0
				st.Apply(model.StateDelta{
					RAGResults:     &card,
					RelevanceScore: &one,
					ActionType:     &actionType,
				})
				return st, nil
			}
		}

		queryParts := []string{}
		if st.Slots.ProductName != "" {
			queryParts = append(queryParts, st.Slots.ProductName)
		}
		// Short follow-ups like "а сколько стоит?" carry no searchable
		// terms on their own, so the previous seller reply anchors them.
		if len(strings.Fields(st.UserMessage)) <= 3 {
			if prev := lastSellerLine(st.History); prev != "" {
				queryParts = append(queryParts, prev)
			}
		}
		queryParts = append(queryParts, st.UserMessage)
		if st.Slots.ProductColor != "" {
			queryParts = append(queryParts, st.Slots.ProductColor)
		}
		if st.Slots.ProductMemory != "" {
			queryParts = append(queryParts, st.Slots.ProductMemory)
		}
		if st.Slots.ProductVariant != "" {
			queryParts = append(queryParts, st.Slots.ProductVariant)
		}
		query := strings.Join(queryParts, " ")

		matches, err := deps.Retriever.Retrieve(ctx, query)
		if err != nil {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Retrieval failed")
			matches = nil
		}

		formatted := "По запросу ничего не найдено в каталоге."
		avg := 0.0
		if len(matches) > 0 {
			var b strings.Builder
			for i, m := range matches {
				if i > 0 {
					b.WriteString("\n\n")
				}
				fmt.Fprintf(&b, "[Товар %d, релевантность %.2f]\n%s", i+1, m.Score, m.Text)
				avg += m.Score
			}
			formatted = b.String()
			avg /= float64(len(matches))

			slots := st.Slots
			slots.ProductID = matches[0].ProductID
			st.Apply(model.StateDelta{Slots: &slots})
		}
		logx.Info().
			Str("sessionID", st.SessionID).
			Int("results", len(matches)).
			Float64("avg_score", avg).
			Msg("Retrieval complete")

		st.Apply(model.StateDelta{
			RAGResults:     &formatted,
			RelevanceScore: &avg,
			ActionType:     &actionType,
		})
		return st, nil
	})
}

// NewStockCheckNode checks availability. When only attributes are
// known, it searches with them and surfaces up to 3 alternatives when
// the exact variant is missing.
func NewStockCheckNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		actionType := NodeStockCheck
		finish := func(result string) (*model.ConversationState, error) {
			st.Apply(model.StateDelta{ActionResult: &result, ActionType: &actionType})
			return st, nil
		}

		productID := st.Slots.ProductID
		if productID == "" {
			query := st.UserMessage
			if st.Slots.ProductName != "" {
				query = st.Slots.ProductName + " " + query
			}
			if st.Slots.ProductColor != "" {
				query += " " + st.Slots.ProductColor
			}
			if st.Slots.ProductMemory != "" {
				query += " " + st.Slots.ProductMemory
			}

			matches, err := deps.Retriever.RetrieveN(ctx, query, 5)
			if err != nil || len(matches) == 0 {
				return finish(unresolvedProductMessage)
			}

			var alternatives []string
			for _, m := range matches {
				title := m.Metadata["title"]
				if memoryMatches(st.Slots.ProductMemory, title) {
					productID = m.ProductID
					break
				}
				alternatives = append(alternatives, title)
			}

			if productID == "" {
				if st.Slots.ProductMemory != "" && len(alternatives) > 0 {
					if len(alternatives) > 3 {
						alternatives = alternatives[:3]
					}
					return finish(fmt.Sprintf(
						"К сожалению, %s на %s нет в наличии.\n\nНо есть другие варианты:\n- %s\n\nХотите узнать подробнее о них?",
						st.Slots.ProductName, st.Slots.ProductMemory, strings.Join(alternatives, "\n- ")))
				}
				productID = matches[0].ProductID
			}
		}

		status := deps.Products.CheckStock(productID)
		if status == nil {
			return finish("Товар не найден.")
		}

		slots := st.Slots
		slots.ProductID = productID
		st.Apply(model.StateDelta{Slots: &slots})

		if status.Available {
			return finish(fmt.Sprintf("Товар в наличии, доступно %d шт.", status.Quantity))
		}
		return finish("К сожалению, товара нет в наличии.")
	})
}

// memoryMatches reports whether the requested memory size appears in a
// listing title, tolerant of spacing and ГБ/GB spelling.
func memoryMatches(requested, title string) bool {
	if requested == "" {
		return true
	}
	norm := func(s string) string {
		s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
		s = strings.ReplaceAll(s, "ГБ", "")
		s = strings.ReplaceAll(s, "GB", "")
		return s
	}
	mem := norm(requested)
	titleNorm := strings.ToUpper(strings.ReplaceAll(title, " ", ""))
	return strings.Contains(titleNorm, mem+"GB") || strings.Contains(titleNorm, mem+"ГБ") || strings.Contains(norm(title), mem)
}

// NewDeliveryCheckNode validates courier options for the product.
func NewDeliveryCheckNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		actionType := NodeDeliveryCheck
		finish := func(result string) (*model.ConversationState, error) {
			st.Apply(model.StateDelta{ActionResult: &result, ActionType: &actionType})
			return st, nil
		}

		productID := resolveProductID(ctx, deps, st, st.UserMessage)
		if productID == "" {
			return finish(unresolvedProductMessage)
		}
		p := deps.Products.Get(productID)
		if p == nil {
			return finish("Товар не найден.")
		}

		slots := st.Slots
		slots.ProductID = productID
		st.Apply(model.StateDelta{Slots: &slots})

		city := st.Entities["city"]
		if city == "" {
			city = st.Slots.City
		}
		service := st.Entities["delivery_service"]
		if service == "" {
			service = st.Slots.DeliveryService
		}

		if service != "" {
			return finish(deps.Delivery.CheckSpecificService(p, service, deps.Seller.ProfessionalSeller, city))
		}
		return finish(deps.Delivery.Recommendation(p, deps.Seller.ProfessionalSeller, city))
	})
}

// NewBargainingNode evaluates a price offer. Missing information is
// reported instead of guessed; accepted deals persist the agreed price
// and notify the seller.
func NewBargainingNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		actionType := NodeBargaining
		finish := func(result string) (*model.ConversationState, error) {
			st.Apply(model.StateDelta{ActionResult: &result, ActionType: &actionType})
			return st, nil
		}

		productID := resolveProductID(ctx, deps, st, st.UserMessage)
		offered := st.Slots.OfferedPrice

		if productID == "" || offered <= 0 {
			var missing []string
			if productID == "" {
				missing = append(missing, "товар")
			}
			if offered <= 0 {
				missing = append(missing, "предложенная цена")
			}
			if productID != "" {
				slots := st.Slots
				slots.ProductID = productID
				st.Apply(model.StateDelta{Slots: &slots})
			}
			needs := true
			st.Apply(model.StateDelta{NeedsClarification: &needs})
			return finish(fmt.Sprintf("Не хватает информации: %s", strings.Join(missing, ", ")))
		}

		p := deps.Products.Get(productID)
		if p == nil {
			return finish("Товар не найден.")
		}

		outcome, explanation := deps.Bargain.Respond(p, offered, false)
		logx.Info().
			Str("sessionID", st.SessionID).
			Str("productID", productID).
			Float64("offered", offered).
			Str("decision", string(outcome.Decision)).
			Msg("Bargaining evaluated")

		slots := st.Slots
		slots.ProductID = productID
		if outcome.Decision == bargaining.DecisionAccept {
			slots.AgreedPrice = offered
			deps.Notifier.NotifyDealAgreed(ctx, p.Title, offered)
		}
		st.Apply(model.StateDelta{Slots: &slots})

		return finish(explanation)
	})
}

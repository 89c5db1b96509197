package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/dialogue"
	logx "github.com/seller-copilot/server/pkg/logger"
)

const generationFallback = "Извините, возникла ошибка при генерации ответа. Попробуйте переформулировать вопрос."

// NewGenerateResponseNode produces the buyer-facing reply. A pending
// clarification question with no data to report short-circuits
// generation.
func NewGenerateResponseNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		hasData := st.ActionResult != "" || st.RAGResults != ""

		if !hasData && st.NeedsClarification && st.ClarificationQuestion != "" {
			response := st.ClarificationQuestion
			st.Apply(model.StateDelta{Response: &response})
			return st, nil
		}

		var contextParts []string
		if st.ActionResult != "" {
			contextParts = append(contextParts, fmt.Sprintf("Результат действия:\n%s", st.ActionResult))
		}
		if st.History != "" {
			contextParts = append(contextParts, fmt.Sprintf("История диалога:\n%s", st.History))
		}
		if st.RAGResults != "" {
			contextParts = append(contextParts, fmt.Sprintf("Информация из базы:\n%s", st.RAGResults))
		}
		if !hasData && (st.Intent == dialogue.IntentStockCheck || st.Intent == dialogue.IntentProductInfo) {
			contextParts = append(contextParts,
				"ВАЖНО: Данные о товаре не найдены в базе. НЕ ВЫДУМЫВАЙ информацию. Скажи, что уточнишь у продавца.")
		}
		contextText := "Нет дополнительного контекста."
		if len(contextParts) > 0 {
			contextText = strings.Join(contextParts, "\n\n")
		}

		response, err := deps.Generator.Generate(ctx, deps.ResponsePrompt, st.UserMessage, contextText)
		if err != nil {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Response generation failed")
			response = generationFallback
		}
		response = strings.TrimSpace(response)
		logx.Info().Str("sessionID", st.SessionID).Int("length", len(response)).Msg("Response generated")

		st.Apply(model.StateDelta{Response: &response})
		return st, nil
	})
}

// NewReflectionNode validates the reply. Clarification questions pass
// trivially; once the regeneration budget is spent validation is
// forced to pass; critic failures also pass rather than block the turn.
func NewReflectionNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		pass := func(reason string, score float64) (*model.ConversationState, error) {
			no := false
			st.Apply(model.StateDelta{
				ReflectionResult:     &reason,
				ResponseQualityScore: &score,
				NeedsRegeneration:    &no,
			})
			return st, nil
		}

		if st.RegenerationCount >= deps.regenerationBudget() {
			logx.Warn().Str("sessionID", st.SessionID).Msg("Regeneration limit reached, skipping validation")
			return pass("max_retries_reached", 6.0)
		}
		if st.NeedsClarification && st.ClarificationQuestion != "" {
			return pass("clarification_question", 8.0)
		}

		critique, err := deps.Critic.Critique(ctx, model.CritiqueInput{
			Reply:        st.Response,
			Text:         st.UserMessage,
			Context:      st.RAGResults,
			ActionResult: st.ActionResult,
			Intent:       st.Intent,
		})
		if err != nil {
			logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("Response validation failed, accepting reply")
			return pass("error_fallback", 7.0)
		}

		if critique.CriticalError != "" {
			logx.Error().Str("sessionID", st.SessionID).Str("error", critique.CriticalError).Msg("Critical response issue")
		} else if len(critique.Issues) > 0 {
			logx.Warn().Str("sessionID", st.SessionID).Strs("issues", critique.Issues).Msg("Response issues found")
		}
		logx.Info().
			Str("sessionID", st.SessionID).
			Float64("score", critique.OverallScore).
			Bool("valid", critique.IsValid).
			Msg("Response validated")

		needsRegen := !critique.IsValid && st.RegenerationCount < deps.regenerationBudget()
		regenCount := st.RegenerationCount
		if needsRegen {
			regenCount++
		}
		reason := "validated"
		if !critique.IsValid {
			reason = strings.Join(critique.Issues, "; ")
			if reason == "" {
				reason = critique.CriticalError
			}
		}
		st.Apply(model.StateDelta{
			ReflectionResult:     &reason,
			ResponseQualityScore: &critique.OverallScore,
			NeedsRegeneration:    &needsRegen,
			RegenerationCount:    &regenCount,
		})
		return st, nil
	})
}

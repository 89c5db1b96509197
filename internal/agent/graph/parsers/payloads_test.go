package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seller-copilot/server/internal/dialogue"
)

func TestParseIntentResult_PlainJSON(t *testing.T) {
	out, err := ParseIntentResult(`{"intent":"bargaining","confidence":0.85,"entities":{"price":"40000"}}`)
	require.NoError(t, err)
	assert.Equal(t, dialogue.IntentBargaining, out.Intent)
	assert.Equal(t, 0.85, out.Confidence)
	assert.Equal(t, "40000", out.Entities["price"])
}

func TestParseIntentResult_MarkdownFenceAndProse(t *testing.T) {
	content := "Вот результат:\n```json\n{\"intent\":\"stock_check\",\"confidence\":0.9,\"entities\":{}}\n```"
	out, err := ParseIntentResult(content)
	require.NoError(t, err)
	assert.Equal(t, dialogue.IntentStockCheck, out.Intent)
}

func TestParseIntentResult_UnknownIntentAndClamp(t *testing.T) {
	out, err := ParseIntentResult(`{"intent":"buy_now","confidence":1.7}`)
	require.NoError(t, err)
	assert.Equal(t, dialogue.IntentGeneralQuestion, out.Intent)
	assert.Equal(t, 1.0, out.Confidence)
	assert.NotNil(t, out.Entities, "entities map is always usable")
}

func TestParseIntentResult_Malformed(t *testing.T) {
	_, err := ParseIntentResult("no json here")
	assert.Error(t, err)

	_, err = ParseIntentResult(`{"intent": }`)
	assert.Error(t, err)
}

func TestParsePlan_ReindexesSteps(t *testing.T) {
	plan, err := ParsePlan(`{
		"complexity": "complex",
		"steps": [
			{"index": 7, "action": "rag_search", "goal": "найти товар"},
			{"index": 2, "action": "bargaining", "goal": "обработать торг"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 0, plan.Steps[0].Index)
	assert.Equal(t, 1, plan.Steps[1].Index)
	assert.Equal(t, "rag_search", plan.Steps[0].Action)
	assert.Equal(t, 2, plan.EstimatedSteps, "defaults to the step count")
}

func TestParsePlan_RejectsEmptyOrActionless(t *testing.T) {
	_, err := ParsePlan(`{"complexity":"simple","steps":[]}`)
	assert.Error(t, err)

	_, err = ParsePlan(`{"steps":[{"action":"  "}]}`)
	assert.Error(t, err)
}

func TestParseRouteDecision(t *testing.T) {
	out, err := ParseRouteDecision(`{"next_action":" rag_search ","confidence":0.8,"reasoning":"нужен контекст","alternatives":["generate_response"]}`)
	require.NoError(t, err)
	assert.Equal(t, "rag_search", out.NextAction)
	assert.Equal(t, 0.8, out.Confidence)
	assert.Equal(t, []string{"generate_response"}, out.Alternatives)

	_, err = ParseRouteDecision(`{"next_action":"","confidence":0.8}`)
	assert.Error(t, err)
}

func TestParseCritique_ScoreClamping(t *testing.T) {
	out, err := ParseCritique(`{"is_valid":false,"overall_score":14,"issues":["выдумана цена"],"critical_error":"галлюцинация"}`)
	require.NoError(t, err)
	assert.False(t, out.IsValid)
	assert.Equal(t, 10.0, out.OverallScore)
	assert.Equal(t, []string{"выдумана цена"}, out.Issues)

	out, err = ParseCritique(`{"is_valid":true,"overall_score":-3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.OverallScore)
}

func TestParseRerankScores(t *testing.T) {
	scores, err := ParseRerankScores(`{"scores":[0.9, 1.4, -0.2]}`)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 1.0, 0.0}, scores)

	_, err = ParseRerankScores(`{"scores":[]}`)
	assert.Error(t, err)
}

func TestExtractJSON_OversizedInput(t *testing.T) {
	// The payload sits past the truncation limit, so parsing fails
	// instead of hanging on megabytes of junk.
	content := strings.Repeat("x", maxContentLen+100) + `{"intent":"bargaining"}`
	_, err := ParseIntentResult(content)
	assert.Error(t, err)
}

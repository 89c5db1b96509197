package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent_UnknownFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, IntentGeneralQuestion, ParseIntent("weird_label"))
	assert.Equal(t, IntentGeneralQuestion, ParseIntent(""))
	assert.Equal(t, IntentBargaining, ParseIntent("bargaining"))
}

func TestExtract_EmptyEntitiesKeepsCurrentSlots(t *testing.T) {
	m := NewManager()
	current := Slots{
		ProductID:    "iphone13-128",
		OfferedPrice: 40000,
		MeetingDate:  "завтра",
	}

	updated := m.Extract(map[string]string{}, current)
	assert.Equal(t, current, updated)

	// Empty values never clear a previously filled slot.
	updated = m.Extract(map[string]string{"product_id": "", "price": ""}, current)
	assert.Equal(t, current, updated)
}

func TestExtract_MergesOnlyNonEmptyValues(t *testing.T) {
	m := NewManager()
	current := Slots{ProductID: "iphone13-128", ProductColor: "черный"}

	updated := m.Extract(map[string]string{
		"price":    "40 000 руб.",
		"location": "метро Юг",
	}, current)

	assert.Equal(t, "iphone13-128", updated.ProductID)
	assert.Equal(t, "черный", updated.ProductColor)
	assert.Equal(t, 40000.0, updated.OfferedPrice)
	assert.Equal(t, "метро Юг", updated.MeetingLocation)
}

func TestExtract_AlternativeEntityKeys(t *testing.T) {
	m := NewManager()

	updated := m.Extract(map[string]string{"memory": "256гб", "color": "синий"}, Slots{})
	assert.Equal(t, "256гб", updated.ProductMemory)
	assert.Equal(t, "синий", updated.ProductColor)

	// The canonical spelling wins over the short one.
	updated = m.Extract(map[string]string{"product_memory": "128гб", "memory": "256гб"}, Slots{})
	assert.Equal(t, "128гб", updated.ProductMemory)
}

func TestExtract_PriceParsingTolerance(t *testing.T) {
	m := NewManager()

	for raw, want := range map[string]float64{
		"40000":       40000,
		"40 000":      40000,
		"40000 руб.":  40000,
		"42500.50":    42500.50,
	} {
		updated := m.Extract(map[string]string{"price": raw}, Slots{})
		assert.Equal(t, want, updated.OfferedPrice, "raw price %q", raw)
	}

	// Unparseable prices leave the slot untouched.
	updated := m.Extract(map[string]string{"price": "дорого"}, Slots{OfferedPrice: 100})
	assert.Equal(t, 100.0, updated.OfferedPrice)
}

func TestCheckCompleteness_ProductNameSubstitutesForID(t *testing.T) {
	m := NewManager()

	complete, missing := m.CheckCompleteness(IntentBargaining, Slots{
		ProductName:  "айфон 13",
		OfferedPrice: 40000,
	})
	assert.True(t, complete)
	assert.Empty(t, missing)
}

func TestCheckCompleteness_MissingSlots(t *testing.T) {
	m := NewManager()

	complete, missing := m.CheckCompleteness(IntentMeetingPlanning, Slots{ProductID: "iphone13-128"})
	assert.False(t, complete)
	assert.Equal(t, []string{"meeting_location", "meeting_date", "meeting_time"}, missing)

	complete, missing = m.CheckCompleteness(IntentGeneralQuestion, Slots{})
	assert.True(t, complete)
	assert.Empty(t, missing)
}

func TestClarification_PriorityOrder(t *testing.T) {
	m := NewManager()

	// product_id outranks everything else regardless of input order.
	q := m.Clarification([]string{"meeting_time", "product_id", "offered_price"})
	assert.Equal(t, "О каком товаре вы спрашиваете?", q)

	q = m.Clarification([]string{"meeting_time", "offered_price"})
	assert.Equal(t, "Какую цену вы предлагаете?", q)

	q = m.Clarification([]string{"meeting_location", "meeting_time"})
	assert.Equal(t, "В какое время вам удобно?", q, "meeting_time outranks meeting_location")
}

func TestClarification_FallbacksForUnknownSlots(t *testing.T) {
	m := NewManager()

	require.Empty(t, m.Clarification(nil))
	q := m.Clarification([]string{"delivery_address"})
	assert.Equal(t, "Куда нужно доставить товар?", q)
}

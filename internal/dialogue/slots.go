package dialogue

import (
	"fmt"
	"strconv"
	"strings"
)

// Intent is the categorical purpose of a buyer utterance.
type Intent string

const (
	IntentProductInfo      Intent = "product_info"
	IntentStockCheck       Intent = "stock_check"
	IntentDeliveryQuestion Intent = "delivery_question"
	IntentWarrantyQuestion Intent = "warranty_question"
	IntentBargaining       Intent = "bargaining"
	IntentMeetingPlanning  Intent = "meeting_planning"
	IntentGeneralQuestion  Intent = "general_question"
)

// ParseIntent normalises a raw intent label; unknown values fall back
// to general_question so the turn can still proceed.
func ParseIntent(v string) Intent {
	switch Intent(v) {
	case IntentProductInfo, IntentStockCheck, IntentDeliveryQuestion,
		IntentWarrantyQuestion, IntentBargaining, IntentMeetingPlanning:
		return Intent(v)
	default:
		return IntentGeneralQuestion
	}
}

// Slots are the structured fields accumulated across turns.
type Slots struct {
	ProductID      string `json:"product_id,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	ProductColor   string `json:"product_color,omitempty"`
	ProductMemory  string `json:"product_memory,omitempty"`
	ProductVariant string `json:"product_variant,omitempty"`

	OfferedPrice float64 `json:"offered_price,omitempty"`
	AgreedPrice  float64 `json:"agreed_price,omitempty"`

	MeetingLocation string `json:"meeting_location,omitempty"`
	MeetingDate     string `json:"meeting_date,omitempty"`
	MeetingTime     string `json:"meeting_time,omitempty"`

	DeliveryService string `json:"delivery_service,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	City            string `json:"city,omitempty"`
}

// requirements maps each intent to the slots it cannot run without.
var requirements = map[Intent][]string{
	IntentProductInfo:      nil,
	IntentStockCheck:       nil,
	IntentDeliveryQuestion: {"product_id"},
	IntentWarrantyQuestion: {"product_id"},
	IntentBargaining:       {"product_id", "offered_price"},
	IntentMeetingPlanning:  {"product_id", "meeting_location", "meeting_date", "meeting_time"},
	IntentGeneralQuestion:  nil,
}

var clarificationQuestions = map[string]string{
	"product_id":       "О каком товаре вы спрашиваете?",
	"offered_price":    "Какую цену вы предлагаете?",
	"meeting_location": "Где вам удобно встретиться?",
	"meeting_date":     "Какой день вам подходит?",
	"meeting_time":     "В какое время вам удобно?",
	"delivery_service": "Какая служба доставки вас интересует?",
	"delivery_address": "Куда нужно доставить товар?",
}

// clarificationPriority fixes the order in which missing slots are asked about.
var clarificationPriority = []string{
	"product_id",
	"offered_price",
	"meeting_date",
	"meeting_time",
	"meeting_location",
}

// Manager extracts slots from classifier entities and checks intent
// requirements.
type Manager struct{}

// NewManager creates a slot manager.
func NewManager() *Manager {
	return &Manager{}
}

func (s Slots) slotValueSet(name string) bool {
	switch name {
	case "product_id":
		return s.ProductID != ""
	case "product_name":
		return s.ProductName != ""
	case "offered_price":
		return s.OfferedPrice > 0
	case "meeting_location":
		return s.MeetingLocation != ""
	case "meeting_date":
		return s.MeetingDate != ""
	case "meeting_time":
		return s.MeetingTime != ""
	case "delivery_service":
		return s.DeliveryService != ""
	case "delivery_address":
		return s.DeliveryAddress != ""
	case "city":
		return s.City != ""
	default:
		return false
	}
}

// CheckCompleteness returns whether the intent has every required slot
// and the ordered list of missing ones. A product_name substitutes for
// a missing product_id: retrieval resolves the id before the capability
// actually needs it.
func (m *Manager) CheckCompleteness(intent Intent, slots Slots) (bool, []string) {
	var missing []string
	for _, name := range requirements[intent] {
		if slots.slotValueSet(name) {
			continue
		}
		if name == "product_id" && slots.ProductName != "" {
			continue
		}
		missing = append(missing, name)
	}
	return len(missing) == 0, missing
}

// Clarification returns the question for the highest-priority missing
// slot, falling back to a generic prompt for slots without a known
// question.
func (m *Manager) Clarification(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	for _, slot := range clarificationPriority {
		for _, ms := range missing {
			if ms == slot {
				if q, ok := clarificationQuestions[slot]; ok {
					return q
				}
				return fmt.Sprintf("Пожалуйста, уточните %s", slot)
			}
		}
	}
	if q, ok := clarificationQuestions[missing[0]]; ok {
		return q
	}
	return fmt.Sprintf("Пожалуйста, уточните %s", missing[0])
}

// Extract merges classifier entities into the current slots. Only keys
// present with a non-empty value overwrite; everything else is kept as
// is, so a slot filled three turns ago survives an unrelated utterance.
func (m *Manager) Extract(entities map[string]string, current Slots) Slots {
	updated := current

	if v := entities["product_id"]; v != "" {
		updated.ProductID = v
	}
	if v := entities["product_name"]; v != "" {
		updated.ProductName = v
	}

	// Classifiers have emitted both spellings over time.
	if v := entities["product_color"]; v != "" {
		updated.ProductColor = v
	} else if v := entities["color"]; v != "" {
		updated.ProductColor = v
	}
	if v := entities["product_memory"]; v != "" {
		updated.ProductMemory = v
	} else if v := entities["memory"]; v != "" {
		updated.ProductMemory = v
	}

	if v := entities["variant"]; v != "" {
		updated.ProductVariant = v
	}
	if v := entities["price"]; v != "" {
		if price, err := parsePrice(v); err == nil {
			updated.OfferedPrice = price
		}
	}
	if v := entities["location"]; v != "" {
		updated.MeetingLocation = v
	}
	if v := entities["date"]; v != "" {
		updated.MeetingDate = v
	}
	if v := entities["time"]; v != "" {
		updated.MeetingTime = v
	}
	if v := entities["delivery_service"]; v != "" {
		updated.DeliveryService = v
	}
	if v := entities["city"]; v != "" {
		updated.City = v
	}

	return updated
}

// parsePrice tolerates thousands separators and currency suffixes the
// classifier sometimes leaves in ("20 000 руб." -> 20000).
func parsePrice(v string) (float64, error) {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".", "руб.", "", "руб", "", "р.", "").Replace(strings.ToLower(v))
	return strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
}

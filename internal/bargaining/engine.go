package bargaining

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seller-copilot/server/internal/product"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// Decision is the outcome of evaluating a price offer.
type Decision string

const (
	DecisionAccept       Decision = "accept"
	DecisionCounterOffer Decision = "counter_offer"
	DecisionDecline      Decision = "decline"
)

// Outcome pairs the decision with its price: the agreed price on
// accept, the counter price on counter_offer, the floor on decline.
type Outcome struct {
	Decision Decision
	Price    float64
}

// Rules holds the phrase templates and special conditions loaded from YAML.
type Rules struct {
	Phrases struct {
		Accept        []string `yaml:"accept"`
		CounterOffer  []string `yaml:"counter_offer"`
		DeclinePolite []string `yaml:"decline_polite"`
		ExplainValue  []string `yaml:"explain_value"`
	} `yaml:"phrases"`
	SpecialConditions struct {
		QuickDeal struct {
			AdditionalDiscount float64 `yaml:"additional_discount"`
		} `yaml:"quick_deal"`
	} `yaml:"special_conditions"`
}

// Engine evaluates buyer offers against a product's discount policy.
// The decision itself is deterministic and pure; only the wording of
// the explanation is randomized.
type Engine struct {
	rules Rules
	rng   *rand.Rand
}

// NewEngine loads phrase rules from YAML. A missing or malformed file
// leaves the engine with built-in fallback wording.
func NewEngine(rulesFile string) *Engine {
	e := &Engine{rng: rand.New(rand.NewSource(rand.Int63()))}

	raw, err := os.ReadFile(rulesFile)
	if err != nil {
		logx.Warn().Err(err).Str("file", rulesFile).Msg("Bargaining rules not loaded")
		return e
	}
	if err := yaml.Unmarshal(raw, &e.rules); err != nil {
		logx.Error().Err(err).Str("file", rulesFile).Msg("Bargaining rules malformed")
	}
	return e
}

// EvaluateOffer applies the discount policy. It never consults the
// phrase tables, so the result is stable for a fixed product and price:
//
//	offer >= list price                      -> accept at the offer
//	gap within max discount                  -> accept at the offer
//	gap within 1.5x max discount             -> counter at the midpoint (floored)
//	otherwise, or bargaining disabled        -> decline at the floor
func (e *Engine) EvaluateOffer(p *product.Product, offered float64) Outcome {
	if !p.CanBargain() {
		return Outcome{Decision: DecisionDecline, Price: p.Price}
	}
	if offered >= p.Price {
		return Outcome{Decision: DecisionAccept, Price: offered}
	}

	discountPercent := (p.Price - offered) / p.Price * 100
	switch {
	case discountPercent <= p.MaxDiscountPercent:
		return Outcome{Decision: DecisionAccept, Price: offered}
	case discountPercent <= p.MaxDiscountPercent*1.5:
		return Outcome{Decision: DecisionCounterOffer, Price: p.CounterOffer(offered)}
	default:
		return Outcome{Decision: DecisionDecline, Price: p.MinAcceptablePrice()}
	}
}

// Explain renders the user-facing wording for an outcome. Phrase choice
// is randomized among the configured templates but always reflects the
// decision it is given.
func (e *Engine) Explain(p *product.Product, offered float64, out Outcome) string {
	if !p.CanBargain() {
		return fmt.Sprintf("Извините, торг не предусмотрен. Цена фиксированная: %.0f руб.", p.Price)
	}

	switch out.Decision {
	case DecisionAccept:
		if offered >= p.Price {
			return fmt.Sprintf("Отлично! Договорились на %.0f руб.", out.Price)
		}
		return e.pickPhrase(e.rules.Phrases.Accept,
			fmt.Sprintf("Хорошо, согласен на %.0f руб.", out.Price), out.Price)

	case DecisionCounterOffer:
		return e.pickPhrase(e.rules.Phrases.CounterOffer,
			fmt.Sprintf("Давайте встретимся посередине? Могу предложить %.0f руб.", out.Price), out.Price)

	default:
		explanation := e.pickPhrase(e.rules.Phrases.DeclinePolite,
			fmt.Sprintf("Спасибо за предложение, но это слишком низкая цена. Минимум %.0f руб.", out.Price), out.Price)
		if reason := valueReasons(p); reason != "" && len(e.rules.Phrases.ExplainValue) > 0 {
			tmpl := e.rules.Phrases.ExplainValue[e.rng.Intn(len(e.rules.Phrases.ExplainValue))]
			explanation += " " + strings.ReplaceAll(tmpl, "{reason}", reason)
		}
		return explanation
	}
}

// Respond evaluates an offer and renders its explanation in one call.
// When the buyer can pick the item up today, a configured quick-deal
// discount sweetens an outstanding counter offer.
func (e *Engine) Respond(p *product.Product, offered float64, pickupToday bool) (Outcome, string) {
	out := e.EvaluateOffer(p, offered)
	explanation := e.Explain(p, offered, out)

	if pickupToday && out.Decision == DecisionCounterOffer {
		if extra := e.rules.SpecialConditions.QuickDeal.AdditionalDiscount; extra > 0 {
			bonus := p.Price * (extra / 100)
			price := out.Price - bonus
			if floor := p.MinPrice; price < floor {
				price = floor
			}
			out.Price = price
			explanation += " Если заберете сегодня, могу дать дополнительную скидку."
		}
	}

	return out, explanation
}

func (e *Engine) pickPhrase(templates []string, fallback string, price float64) string {
	if len(templates) == 0 {
		return fallback
	}
	tmpl := templates[e.rng.Intn(len(templates))]
	return strings.ReplaceAll(tmpl, "{price}", fmt.Sprintf("%.0f", price))
}

// valueReasons derives the justification phrase from product attributes:
// warranty language, new/sealed condition keywords, high absolute price.
func valueReasons(p *product.Product) string {
	var reasons []string

	warranty := strings.ToLower(p.Warranty)
	if strings.Contains(warranty, "месяц") || strings.Contains(warranty, "год") {
		if strings.Contains(warranty, "официальн") {
			reasons = append(reasons, "официальная гарантия")
		}
	}

	notes := strings.ToLower(p.QualityNotes)
	for _, word := range []string{"новый", "запечатан", "идеальн"} {
		if strings.Contains(notes, word) {
			reasons = append(reasons, "идеальное состояние")
			break
		}
	}
	if strings.Contains(notes, "новый") {
		reasons = append(reasons, "товар новый")
	}

	if p.Price > 100000 {
		reasons = append(reasons, "дорогой товар с небольшой маржой")
	}

	if len(reasons) == 0 {
		return "товар в хорошем состоянии"
	}
	return strings.Join(reasons, ", ")
}

package product

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// DeliveryService describes one courier's published limits.
type DeliveryService struct {
	Name              string       `yaml:"name"`
	MinPrice          float64      `yaml:"min_price"`
	MaxPrice          float64      `yaml:"max_price"`
	MaxPriceProf      float64      `yaml:"max_price_professional"`
	MaxPriceLimited   float64      `yaml:"max_price_limited"`
	LimitedCategories []string     `yaml:"limited_categories"`
	MaxWeight         float64      `yaml:"max_weight"`
	MaxWeightExtended float64      `yaml:"max_weight_extended"`
	ExtendedCities    []string     `yaml:"extended_cities"`
	BoxSizes          [][3]float64 `yaml:"box_sizes"`
	MaxLength         float64      `yaml:"max_length"`
	MaxWidth          float64      `yaml:"max_width"`
	MaxHeight         float64      `yaml:"max_height"`
	MaxSumDimensions  float64      `yaml:"max_sum_dimensions"`
	MaxVolumeProduct  float64      `yaml:"max_volume_product"`
	LargeItemSupport  bool         `yaml:"large_item_support"`
	LargeItemWeight   float64      `yaml:"large_item_weight_max"`
	LargeItemLength   float64      `yaml:"large_item_length_max"`
	LargeItemVolume   float64      `yaml:"large_item_volume_max"`
	ProhibitedCats    []string     `yaml:"prohibited_categories"`
	Insurance         bool         `yaml:"insurance_available"`
	CityOnly          bool         `yaml:"city_only"`
	Notes             string       `yaml:"notes"`
}

// SuitableService is one courier that passed validation for a product.
type SuitableService struct {
	ServiceID        string
	Name             string
	Insurance        bool
	CityOnly         bool
	Notes            string
	LargeItemSupport bool
}

// DeliveryValidator checks products against courier limits loaded from
// a YAML rules file.
type DeliveryValidator struct {
	services map[string]*DeliveryService
	order    []string
}

// NewDeliveryValidator loads courier rules. A missing rules file yields
// an empty validator so the assistant can still answer other questions.
func NewDeliveryValidator(rulesFile string) *DeliveryValidator {
	v := &DeliveryValidator{services: map[string]*DeliveryService{}}

	raw, err := os.ReadFile(rulesFile)
	if err != nil {
		logx.Warn().Err(err).Str("file", rulesFile).Msg("Delivery rules not loaded")
		return v
	}

	var parsed map[string]*DeliveryService
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		logx.Error().Err(err).Str("file", rulesFile).Msg("Delivery rules malformed")
		return v
	}
	delete(parsed, "avito_general")
	v.services = parsed
	for name := range parsed {
		v.order = append(v.order, name)
	}
	sort.Strings(v.order)

	logx.Debug().Int("services", len(v.order)).Msg("Delivery rules loaded")
	return v
}

func orInf(limit float64) float64 {
	if limit <= 0 {
		return math.Inf(1)
	}
	return limit
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ValidateProduct checks one product against one courier's limits and
// returns every violated constraint as a human-readable issue.
func (v *DeliveryValidator) ValidateProduct(p *Product, serviceName string, professionalSeller bool, city string) (bool, []string) {
	svc := v.services[serviceName]
	if svc == nil {
		return false, []string{fmt.Sprintf("Служба доставки '%s' не найдена", serviceName)}
	}

	var issues []string
	dims := p.Dimensions

	maxPrice := orInf(svc.MaxPrice)
	if professionalSeller && svc.MaxPriceProf > 0 {
		maxPrice = svc.MaxPriceProf
	}
	if serviceName == "post5" && containsString(svc.LimitedCategories, p.Category) && svc.MaxPriceLimited > 0 {
		maxPrice = math.Min(maxPrice, svc.MaxPriceLimited)
	}

	if p.Price < svc.MinPrice {
		issues = append(issues, fmt.Sprintf(
			"Цена товара (%.0f руб.) ниже минимальной для %s (%.0f руб.)",
			p.Price, svc.Name, svc.MinPrice))
	}
	if p.Price > maxPrice {
		issues = append(issues, fmt.Sprintf(
			"Цена товара (%.0f руб.) превышает максимальную для %s (%.0f руб.)",
			p.Price, svc.Name, maxPrice))
	}

	maxWeight := orInf(svc.MaxWeight)
	if serviceName == "yandex_delivery" && city != "" && containsString(svc.ExtendedCities, city) && svc.MaxWeightExtended > 0 {
		maxWeight = svc.MaxWeightExtended
	}
	if p.Weight > maxWeight {
		issues = append(issues, fmt.Sprintf(
			"Вес товара (%.1f кг) превышает максимальный для %s (%.0f кг)",
			p.Weight, svc.Name, maxWeight))
	}

	switch serviceName {
	case "yandex_delivery":
		fits := false
		if city != "" && containsString(svc.ExtendedCities, city) {
			fits = dims.Length <= 80 && dims.Width <= 60 && dims.Height <= 60
		} else {
			for _, box := range svc.BoxSizes {
				if dims.Length <= box[0] && dims.Width <= box[1] && dims.Height <= box[2] {
					fits = true
					break
				}
			}
		}
		if !fits {
			issues = append(issues, fmt.Sprintf(
				"Габариты товара (%.0f×%.0f×%.0f см) не помещаются в стандартные коробки Яндекс.Доставки",
				dims.Length, dims.Width, dims.Height))
		}

	case "cdek":
		if longest := dims.LongestSide(); longest > orInf(svc.MaxLength) {
			issues = append(issues, fmt.Sprintf(
				"Самая длинная сторона (%.0f см) превышает максимальную для СДЭК (%.0f см)",
				longest, svc.MaxLength))
		}
		volume := dims.Volume()
		if volume > orInf(svc.MaxVolumeProduct) {
			largeOK := svc.LargeItemSupport &&
				p.Weight <= orInf(svc.LargeItemWeight) &&
				dims.LongestSide() <= orInf(svc.LargeItemLength) &&
				volume <= orInf(svc.LargeItemVolume)
			if !largeOK {
				issues = append(issues, fmt.Sprintf(
					"Произведение габаритов (%.0f см³) превышает максимальное для СДЭК (%.0f см³)",
					volume, svc.MaxVolumeProduct))
			}
		}

	default:
		if longest := dims.LongestSide(); longest > orInf(svc.MaxLength) {
			issues = append(issues, fmt.Sprintf(
				"Самая длинная сторона (%.0f см) превышает максимальную (%.0f см)",
				longest, svc.MaxLength))
		}
		if dims.Width > orInf(svc.MaxWidth) {
			issues = append(issues, fmt.Sprintf(
				"Ширина (%.0f см) превышает максимальную (%.0f см)", dims.Width, svc.MaxWidth))
		}
		if dims.Height > orInf(svc.MaxHeight) {
			issues = append(issues, fmt.Sprintf(
				"Высота (%.0f см) превышает максимальную (%.0f см)", dims.Height, svc.MaxHeight))
		}
		if svc.MaxSumDimensions > 0 && dims.Sum() > svc.MaxSumDimensions {
			issues = append(issues, fmt.Sprintf(
				"Сумма габаритов (%.1f см) превышает максимальную (%.0f см)",
				dims.Sum(), svc.MaxSumDimensions))
		}
	}

	if containsString(svc.ProhibitedCats, p.Category) {
		issues = append(issues, fmt.Sprintf(
			"Категория '%s' запрещена для отправки через %s", p.Category, svc.Name))
	}

	return len(issues) == 0, issues
}

// FindSuitableServices returns every courier that passes validation,
// in stable service order.
func (v *DeliveryValidator) FindSuitableServices(p *Product, professionalSeller bool, city string) []SuitableService {
	var suitable []SuitableService
	for _, name := range v.order {
		ok, _ := v.ValidateProduct(p, name, professionalSeller, city)
		if !ok {
			continue
		}
		svc := v.services[name]
		suitable = append(suitable, SuitableService{
			ServiceID:        name,
			Name:             svc.Name,
			Insurance:        svc.Insurance,
			CityOnly:         svc.CityOnly,
			Notes:            svc.Notes,
			LargeItemSupport: svc.LargeItemSupport,
		})
	}
	return suitable
}

// CheckSpecificService gives a user-facing verdict for a courier the
// buyer named explicitly. Unknown names are matched loosely against
// display names before giving up.
func (v *DeliveryValidator) CheckSpecificService(p *Product, serviceName string, professionalSeller bool, city string) string {
	key := serviceName
	if v.services[key] == nil {
		lower := strings.ToLower(serviceName)
		for _, name := range v.order {
			svc := v.services[name]
			if strings.Contains(strings.ToLower(svc.Name), lower) || strings.Contains(strings.ToLower(name), lower) {
				key = name
				break
			}
		}
	}

	svc := v.services[key]
	if svc == nil {
		return fmt.Sprintf("Не нашел службу доставки '%s'. Могу проверить доступные варианты?", serviceName)
	}

	ok, issues := v.ValidateProduct(p, key, professionalSeller, city)
	if ok {
		return fmt.Sprintf(
			"Да, %s подходит для этого товара! Оформить доставку можно через Авито — в объявлении есть кнопка «Купить с доставкой».",
			svc.Name)
	}

	mainIssue := "не подходит по параметрам"
	if len(issues) > 0 {
		mainIssue = issues[0]
	}

	if suitable := v.FindSuitableServices(p, professionalSeller, city); len(suitable) > 0 {
		names := make([]string, 0, 3)
		for _, s := range suitable {
			names = append(names, s.Name)
			if len(names) == 3 {
				break
			}
		}
		return fmt.Sprintf(
			"К сожалению, %s не подходит: %s. Но могу предложить: %s. Оформить можно через Авито — в объявлении есть кнопка «Купить с доставкой».",
			svc.Name, mainIssue, strings.Join(names, ", "))
	}

	return fmt.Sprintf(
		"К сожалению, %s не подходит: %s. Рекомендую самовывоз или курьерскую доставку по договоренности.",
		svc.Name, mainIssue)
}

// Recommendation builds the general delivery answer listing every
// courier that can take the product, or the reasons none can.
func (v *DeliveryValidator) Recommendation(p *Product, professionalSeller bool, city string) string {
	suitable := v.FindSuitableServices(p, professionalSeller, city)

	if len(suitable) == 0 {
		var reasons []string
		for _, name := range v.order {
			if _, issues := v.ValidateProduct(p, name, professionalSeller, city); len(issues) > 0 {
				limit := issues
				if len(limit) > 2 {
					limit = limit[:2]
				}
				reasons = append(reasons, fmt.Sprintf("- %s: %s", v.services[name].Name, strings.Join(limit, ", ")))
				if len(reasons) == 3 {
					break
				}
			}
		}
		return "К сожалению, товар не подходит для стандартной доставки через Avito:\n" +
			strings.Join(reasons, "\n") +
			"\n\nРекомендую самовывоз или курьерскую доставку по договоренности."
	}

	if city == "" {
		filtered := suitable[:0]
		for _, s := range suitable {
			if !s.CityOnly {
				filtered = append(filtered, s)
			}
		}
		suitable = filtered
	}
	if len(suitable) == 0 {
		return "Для этого товара доступна только курьерская доставка внутри города. Укажите город для проверки доступности."
	}

	names := make([]string, len(suitable))
	for i, s := range suitable {
		names[i] = s.Name
	}
	return fmt.Sprintf(
		"Для этого товара подходят: %s. Оформить доставку можно через Авито — в объявлении есть кнопка «Купить с доставкой».",
		strings.Join(names, ", "))
}

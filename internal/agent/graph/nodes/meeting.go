package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/seller-copilot/server/internal/agent/model"
	"github.com/seller-copilot/server/internal/meetings"
	logx "github.com/seller-copilot/server/pkg/logger"
)

// NewMeetingPlanningNode drives the slot-filling sequence for a
// pickup meeting: location, date, time, then confirmation. On
// confirmation it reserves a unit, optionally creates a calendar
// event and notifies the seller, in that order; a later step failing
// never rolls back an earlier one.
func NewMeetingPlanningNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		actionType := NodeMeetingPlanning
		finish := func(result string, clarify bool) (*model.ConversationState, error) {
			st.Apply(model.StateDelta{
				ActionResult:       &result,
				ActionType:         &actionType,
				NeedsClarification: &clarify,
			})
			return st, nil
		}

		productID := resolveProductID(ctx, deps, st, st.UserMessage)
		if productID == "" {
			return finish("Не указан товар для встречи. О каком товаре вы спрашиваете?", true)
		}
		p := deps.Products.Get(productID)
		if p == nil {
			return finish("Товар не найден.", false)
		}

		slots := st.Slots
		slots.ProductID = productID
		st.Apply(model.StateDelta{Slots: &slots})

		location := st.Slots.MeetingLocation
		date := st.Slots.MeetingDate
		timeStr := meetings.NormalizeFuzzyTime(st.Slots.MeetingTime)
		locations := p.MeetingLocations
		locationsText := strings.Join(locations, ", ")

		logx.Debug().
			Str("sessionID", st.SessionID).
			Str("productID", productID).
			Str("location", location).
			Str("date", date).
			Str("time", timeStr).
			Msg("Meeting parameters")

		if location != "" && !containsLocation(locations, location) {
			return finish(fmt.Sprintf(
				"К сожалению, могу встретиться только в этих местах: %s. Какое место вам удобно?",
				locationsText), true)
		}

		if date == "" {
			return finish(suggestDays(deps, locationsText), true)
		}

		if timeStr == "" {
			slotsForDay := deps.Meetings.AvailableSlots(date)
			if len(slotsForDay) == 0 {
				return finish(fmt.Sprintf("К сожалению, на %s все время занято. Предложите другой день?", date), true)
			}
			return finish(fmt.Sprintf(
				"На %s можно с %s до %s. Во сколько вам удобно?",
				date, slotsForDay[0], slotsForDay[len(slotsForDay)-1]), true)
		}

		ok, issues, suggestion := deps.Meetings.ValidateMeetingTime(date, timeStr)
		if !ok {
			if suggestion == "" {
				suggestion = "Предложите другое время."
			}
			return finish(fmt.Sprintf(
				"❌ К сожалению, %s в %s не подходит (%s). %s",
				date, timeStr, strings.Join(issues, ", "), suggestion), true)
		}

		if location == "" {
			return finish(fmt.Sprintf("Отлично, %s в %s. Где встретимся? Доступны: %s", date, timeStr, locationsText), true)
		}

		// All three slots are valid: reserve, then calendar, then notify.
		finalPrice := st.Slots.AgreedPrice
		if finalPrice <= 0 {
			finalPrice = p.Price
		}

		if !deps.Products.Reserve(productID, 1) {
			return finish(fmt.Sprintf(
				"К сожалению, не удалось зарезервировать товар: %s нет в наличии. Попробуйте выбрать другое время или товар.",
				p.Title), false)
		}
		logx.Info().Str("sessionID", st.SessionID).Str("productID", productID).Msg("Product reserved for meeting")

		calendarLink := ""
		if deps.Calendar.IsEnabled() {
			day := deps.Meetings.ResolveDate(date)
			start, parseErr := time.Parse("15:04", timeStr)
			if parseErr == nil {
				startAt := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, day.Location())
				description := fmt.Sprintf("Продажа товара: %s\nМесто встречи: %s\nЦена: %.0f руб.", p.Title, location, finalPrice)
				calendarLink = deps.Calendar.CreateEvent(ctx, "Встреча: "+p.Title, location, startAt, 30, description)
			}
		}

		result := fmt.Sprintf("Договорились! Встречаемся %s в %s, место: %s. Товар: %s, цена: %.0f руб. ",
			date, timeStr, location, p.Title, finalPrice)
		if calendarLink != "" {
			result += "Добавил встречу в календарь. "
		}
		result += "Товар зарезервирован. Жду вас!"

		deps.Notifier.NotifyMeetingScheduled(ctx, p.Title, location, date, timeStr)

		return finish(result, false)
	})
}

func containsLocation(locations []string, candidate string) bool {
	if len(locations) == 0 {
		return true
	}
	c := strings.ToLower(strings.TrimSpace(candidate))
	for _, loc := range locations {
		l := strings.ToLower(loc)
		if l == c || strings.Contains(l, c) || strings.Contains(c, l) {
			return true
		}
	}
	return false
}

// suggestDays offers the next few days that still have open slots.
func suggestDays(deps *Deps, locationsText string) string {
	var suggested []string
	labels := []string{"сегодня", "завтра"}
	now := time.Now()

	for daysAhead := 0; daysAhead < 4 && len(suggested) < 3; daysAhead++ {
		day := now.AddDate(0, 0, daysAhead)
		label := day.Format("02.01")
		if daysAhead < len(labels) {
			label = labels[daysAhead]
		}
		slotsForDay := deps.Meetings.AvailableSlots(day.Format("2006-01-02"))
		if len(slotsForDay) > 0 {
			suggested = append(suggested, fmt.Sprintf("%s с %s до %s", label, slotsForDay[0], slotsForDay[len(slotsForDay)-1]))
		}
	}

	if len(suggested) == 0 {
		return "К сожалению, ближайшие дни заняты. Предложите удобное вам время."
	}
	return fmt.Sprintf(
		"Могу встретиться: %s. Доступные места: %s. Какие день, время и место вам удобны?",
		strings.Join(suggested, ", "), locationsText)
}

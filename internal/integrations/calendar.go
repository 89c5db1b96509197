package integrations

import (
	"context"
	"net/url"
	"time"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// CalendarService produces calendar entries for confirmed meetings.
// The current backend builds a Google Calendar event link; failures
// degrade to an empty link, never to a broken conversation.
type CalendarService struct {
	enabled  bool
	timezone *time.Location
}

func NewCalendarService(enabled bool, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{enabled: enabled, timezone: loc}
}

func (c *CalendarService) IsEnabled() bool {
	return c != nil && c.enabled
}

// CreateEvent builds an event for the meeting and returns a link the
// seller can open to add it to a calendar.
func (c *CalendarService) CreateEvent(ctx context.Context, title, location string, start time.Time, durationMinutes int, description string) string {
	if !c.IsEnabled() {
		return ""
	}
	if durationMinutes <= 0 {
		durationMinutes = 30
	}
	start = start.In(c.timezone)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	const layout = "20060102T150405"
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("dates", start.Format(layout)+"/"+end.Format(layout))
	q.Set("ctz", c.timezone.String())
	q.Set("location", location)
	q.Set("details", description)

	link := "https://calendar.google.com/calendar/render?" + q.Encode()
	logx.Debug().Str("title", title).Time("start", start).Msg("Calendar event created")
	return link
}

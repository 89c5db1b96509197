package integrations

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarService_Disabled(t *testing.T) {
	var nilSvc *CalendarService
	assert.False(t, nilSvc.IsEnabled())
	assert.Empty(t, nilSvc.CreateEvent(context.Background(), "Встреча", "метро Юг", time.Now(), 30, ""))

	svc := NewCalendarService(false, time.UTC)
	assert.False(t, svc.IsEnabled())
	assert.Empty(t, svc.CreateEvent(context.Background(), "Встреча", "метро Юг", time.Now(), 30, ""))
}

func TestCalendarService_EventLink(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	svc := NewCalendarService(true, loc)
	start := time.Date(2026, 9, 8, 18, 0, 0, 0, loc)
	link := svc.CreateEvent(context.Background(), "Встреча: iPhone 13", "метро Юг", start, 30, "Сделка на 41000 руб.")
	require.NotEmpty(t, link)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Встреча: iPhone 13", q.Get("text"))
	assert.Equal(t, "20260908T180000/20260908T183000", q.Get("dates"))
	assert.Equal(t, "Europe/Moscow", q.Get("ctz"))
	assert.Equal(t, "метро Юг", q.Get("location"))
}

func TestCalendarService_DefaultDuration(t *testing.T) {
	svc := NewCalendarService(true, time.UTC)
	start := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)
	link := svc.CreateEvent(context.Background(), "Встреча", "", start, 0, "")

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "20260908T100000/20260908T103000", parsed.Query().Get("dates"))
}

func TestTelegramNotifier_Enabled(t *testing.T) {
	var nilNotifier *TelegramNotifier
	assert.False(t, nilNotifier.IsEnabled())

	assert.False(t, NewTelegramNotifier("", "").IsEnabled())
	assert.False(t, NewTelegramNotifier("token", "").IsEnabled())
	assert.True(t, NewTelegramNotifier("token", "42").IsEnabled())
}

package meetings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestValidator pins the clock to Monday 2026-09-07 10:00 Moscow so
// every assertion below is deterministic.
func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v := NewValidator("")
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	v.now = func() time.Time {
		return time.Date(2026, time.September, 7, 10, 0, 0, 0, loc)
	}
	return v
}

func TestNormalizeFuzzyTime(t *testing.T) {
	assert.Equal(t, "10:00", NormalizeFuzzyTime("утром"))
	assert.Equal(t, "14:00", NormalizeFuzzyTime("днём"))
	assert.Equal(t, "14:00", NormalizeFuzzyTime("днем"))
	assert.Equal(t, "18:00", NormalizeFuzzyTime("Вечером"))
	assert.Equal(t, "20:00", NormalizeFuzzyTime("ночью"))
	assert.Equal(t, "15:30", NormalizeFuzzyTime("15:30"), "concrete times pass through")
}

func TestResolveDate_RelativeAndFormatted(t *testing.T) {
	v := newTestValidator(t)

	today := v.ResolveDate("сегодня")
	assert.Equal(t, 7, today.Day())

	tomorrow := v.ResolveDate("завтра")
	assert.Equal(t, 8, tomorrow.Day())

	iso := v.ResolveDate("2026-09-15")
	assert.Equal(t, 15, iso.Day())
	assert.Equal(t, time.September, iso.Month())

	dotted := v.ResolveDate("15.09.2026")
	assert.Equal(t, 15, dotted.Day())

	short := v.ResolveDate("15.09")
	assert.Equal(t, 15, short.Day())
	assert.Equal(t, 2026, short.Year())

	// Garbage defaults to tomorrow.
	fallback := v.ResolveDate("когда-нибудь")
	assert.Equal(t, 8, fallback.Day())
}

func TestValidateMeetingTime_ValidSlot(t *testing.T) {
	v := newTestValidator(t)

	ok, issues, suggestion := v.ValidateMeetingTime("завтра", "14:00")
	assert.True(t, ok)
	assert.Empty(t, issues)
	assert.Empty(t, suggestion)
}

func TestValidateMeetingTime_Past(t *testing.T) {
	v := newTestValidator(t)

	ok, issues, suggestion := v.ValidateMeetingTime("сегодня", "09:00")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "уже прошло")
	assert.NotEmpty(t, suggestion)
}

func TestValidateMeetingTime_MinLeadTime(t *testing.T) {
	v := newTestValidator(t)

	// 11:00 is only one hour out, the minimum is two.
	ok, issues, suggestion := v.ValidateMeetingTime("сегодня", "11:00")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "Слишком скоро")
	assert.NotEmpty(t, suggestion)

	// Exactly two hours out is allowed.
	ok, _, _ = v.ValidateMeetingTime("сегодня", "12:00")
	assert.True(t, ok)
}

func TestValidateMeetingTime_MaxDays(t *testing.T) {
	v := newTestValidator(t)

	ok, issues, _ := v.ValidateMeetingTime("2026-10-20", "14:00")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "Слишком далеко")

	ok, _, _ = v.ValidateMeetingTime("2026-10-05", "14:00")
	assert.True(t, ok)
}

func TestValidateMeetingTime_NonWorkingDay(t *testing.T) {
	v := newTestValidator(t)
	v.rules.WorkingDays = map[string]bool{"sunday": false}

	// 2026-09-13 is a Sunday.
	ok, issues, suggestion := v.ValidateMeetingTime("2026-09-13", "14:00")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "выходной")
	assert.NotEmpty(t, suggestion)
}

func TestValidateMeetingTime_BusinessHoursEndInclusive(t *testing.T) {
	v := newTestValidator(t)

	// Exactly the closing time is still acceptable.
	ok, issues, _ := v.ValidateMeetingTime("завтра", "20:00")
	assert.True(t, ok, "issues: %v", issues)

	// One minute past closing is not.
	ok, issues, suggestion := v.ValidateMeetingTime("завтра", "20:01")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "вне рабочих часов")
	assert.NotEmpty(t, suggestion)

	// Before opening is rejected too.
	ok, _, _ = v.ValidateMeetingTime("завтра", "08:30")
	assert.False(t, ok)
}

func TestValidateMeetingTime_LunchBreak(t *testing.T) {
	v := newTestValidator(t)
	v.rules.LunchBreak.Enabled = true
	v.rules.LunchBreak.StartTime = "13:00"
	v.rules.LunchBreak.EndTime = "14:00"

	ok, issues, _ := v.ValidateMeetingTime("завтра", "13:30")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "обеденного")

	// The end of the break is exclusive.
	ok, _, _ = v.ValidateMeetingTime("завтра", "14:00")
	assert.True(t, ok)
}

func TestValidateMeetingTime_FuzzyTimeAccepted(t *testing.T) {
	v := newTestValidator(t)

	ok, issues, _ := v.ValidateMeetingTime("завтра", "вечером")
	assert.True(t, ok, "issues: %v", issues)

	// "ночью" resolves to 20:00 which is still inside business hours.
	ok, _, _ = v.ValidateMeetingTime("завтра", "ночью")
	assert.True(t, ok)
}

func TestAvailableSlots(t *testing.T) {
	v := newTestValidator(t)

	// At 10:00 with a 2 hour lead, today's 10:00 slot is gone but the
	// afternoon and evening remain.
	slots := v.AvailableSlots("сегодня")
	assert.Equal(t, []string{"14:00", "18:00"}, slots)

	slots = v.AvailableSlots("завтра")
	assert.Equal(t, []string{"10:00", "14:00", "18:00"}, slots)
}

package meetings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// Rules mirrors the meeting rules YAML file.
type Rules struct {
	BusinessHours struct {
		Enabled   bool   `yaml:"enabled"`
		StartTime string `yaml:"start_time"`
		EndTime   string `yaml:"end_time"`
		Timezone  string `yaml:"timezone"`
	} `yaml:"business_hours"`
	LeadTime struct {
		MinHours int `yaml:"min_hours"`
		MaxDays  int `yaml:"max_days"`
	} `yaml:"lead_time"`
	WorkingDays map[string]bool `yaml:"working_days"`
	LunchBreak  struct {
		Enabled   bool   `yaml:"enabled"`
		StartTime string `yaml:"start_time"`
		EndTime   string `yaml:"end_time"`
	} `yaml:"lunch_break"`
	SpecialRules struct {
		PreferredTimes []string `yaml:"preferred_times"`
	} `yaml:"special_rules"`
	Messages map[string]string `yaml:"messages"`
}

// fuzzyTimes maps vague time-of-day words to canonical clock times.
var fuzzyTimes = map[string]string{
	"утром":   "10:00",
	"утро":    "10:00",
	"днем":    "14:00",
	"днём":    "14:00",
	"день":    "14:00",
	"вечером": "18:00",
	"вечер":   "18:00",
	"ночью":   "20:00",
	"ночь":    "20:00",
}

// Validator checks candidate meeting times against the seller's
// availability rules.
type Validator struct {
	rules Rules
	loc   *time.Location
	now   func() time.Time
}

// NewValidator loads meeting rules from YAML. Defaults keep the
// validator usable when the file is missing: Moscow time, 09:00-20:00,
// 2 hours lead, 30 days window, every day working.
func NewValidator(rulesFile string) *Validator {
	v := &Validator{now: time.Now}
	v.rules.BusinessHours.Enabled = true
	v.rules.BusinessHours.StartTime = "09:00"
	v.rules.BusinessHours.EndTime = "20:00"
	v.rules.BusinessHours.Timezone = "Europe/Moscow"
	v.rules.LeadTime.MinHours = 2
	v.rules.LeadTime.MaxDays = 30
	v.rules.SpecialRules.PreferredTimes = []string{"10:00", "14:00", "18:00"}

	if raw, err := os.ReadFile(rulesFile); err != nil {
		logx.Warn().Err(err).Str("file", rulesFile).Msg("Meeting rules not loaded, using defaults")
	} else if err := yaml.Unmarshal(raw, &v.rules); err != nil {
		logx.Error().Err(err).Str("file", rulesFile).Msg("Meeting rules malformed, using defaults")
	}

	loc, err := time.LoadLocation(v.rules.BusinessHours.Timezone)
	if err != nil {
		logx.Warn().Err(err).Str("timezone", v.rules.BusinessHours.Timezone).Msg("Unknown timezone, using UTC")
		loc = time.UTC
	}
	v.loc = loc
	return v
}

// NormalizeFuzzyTime resolves vague time-of-day words ("вечером") to a
// canonical clock time; concrete times pass through unchanged.
func NormalizeFuzzyTime(timeStr string) string {
	if t, ok := fuzzyTimes[strings.ToLower(strings.TrimSpace(timeStr))]; ok {
		return t
	}
	return timeStr
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", s)
	}
	return hour, minute, nil
}

// Location returns the timezone meetings are validated in.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// ResolveDate turns relative and formatted dates into a concrete day in
// the validator's timezone. Unparseable dates default to tomorrow.
func (v *Validator) ResolveDate(dateStr string) time.Time {
	now := v.now().In(v.loc)
	switch strings.ToLower(strings.TrimSpace(dateStr)) {
	case "сегодня":
		return now
	case "завтра":
		return now.AddDate(0, 0, 1)
	}

	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if d, err := time.ParseInLocation(layout, strings.TrimSpace(dateStr), v.loc); err == nil {
			return d
		}
	}
	// Day.month without a year, e.g. "15.09".
	if parts := strings.Split(strings.TrimSpace(dateStr), "."); len(parts) == 2 {
		day, dayErr := strconv.Atoi(parts[0])
		month, monErr := strconv.Atoi(parts[1])
		if dayErr == nil && monErr == nil && month >= 1 && month <= 12 {
			return time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, v.loc)
		}
	}
	return now.AddDate(0, 0, 1)
}

func (v *Validator) meetingDateTime(dateStr, timeStr string) (time.Time, error) {
	hour, minute, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	d := v.ResolveDate(dateStr)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, v.loc), nil
}

func (v *Validator) message(key, fallback string, repl ...string) string {
	msg := v.rules.Messages[key]
	if msg == "" {
		msg = fallback
	}
	if len(repl) > 0 {
		msg = strings.NewReplacer(repl...).Replace(msg)
	}
	return msg
}

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

// ValidateMeetingTime checks one candidate date/time against every
// availability rule in order: not in the past, lead-time window,
// working day, business hours (end time inclusive), lunch break.
// It returns the violated issues plus a suggested alternative.
func (v *Validator) ValidateMeetingTime(dateStr, timeStr string) (bool, []string, string) {
	timeStr = NormalizeFuzzyTime(timeStr)

	meetingAt, err := v.meetingDateTime(dateStr, timeStr)
	if err != nil {
		return false, []string{fmt.Sprintf("Ошибка разбора даты/времени: %v", err)}, ""
	}
	now := v.now().In(v.loc)
	preferred := v.rules.SpecialRules.PreferredTimes

	if meetingAt.Before(now) {
		suggestion := fmt.Sprintf("Это время уже прошло. Можем встретиться завтра в %s или %s?",
			preferredAt(preferred, 0), preferredAt(preferred, 1))
		return false, []string{"Указанное время уже прошло"}, suggestion
	}

	minHours := v.rules.LeadTime.MinHours
	maxDays := v.rules.LeadTime.MaxDays
	diff := meetingAt.Sub(now)

	if diff < time.Duration(minHours)*time.Hour {
		earliest := now.Add(time.Duration(minHours) * time.Hour).Format("15:04")
		suggestion := ""
		for _, t := range preferred {
			if t > earliest {
				suggestion = fmt.Sprintf("Мне нужно минимум %d часа для подготовки. Могу встретиться сегодня в %s или завтра?", minHours, t)
				break
			}
		}
		if suggestion == "" {
			suggestion = fmt.Sprintf("Мне нужно минимум %d часа для подготовки. Могу встретиться завтра в %s или %s?",
				minHours, preferredAt(preferred, 0), preferredAt(preferred, 1))
		}
		return false, []string{fmt.Sprintf("Слишком скоро (нужно минимум %d часа)", minHours)}, suggestion
	}

	if int(diff.Hours()/24) > maxDays {
		suggestion := v.message("too_far",
			fmt.Sprintf("Так далеко не планирую, максимум %d дней вперед.", maxDays),
			"{days}", strconv.Itoa(maxDays))
		return false, []string{fmt.Sprintf("Слишком далеко (максимум %d дней)", maxDays)}, suggestion
	}

	dayKey := weekdayKeys[meetingAt.Weekday()]
	if working, ok := v.rules.WorkingDays[dayKey]; ok && !working {
		suggestion := v.message("non_working_day",
			fmt.Sprintf("В %s у меня выходной, давайте другой день?", dayKey),
			"{day}", dayKey)
		return false, []string{fmt.Sprintf("В %s выходной", dayKey)}, suggestion
	}

	bh := v.rules.BusinessHours
	if bh.Enabled {
		startH, startM, startErr := parseClock(bh.StartTime)
		endH, endM, endErr := parseClock(bh.EndTime)
		if startErr == nil && endErr == nil {
			minutes := meetingAt.Hour()*60 + meetingAt.Minute()
			if minutes < startH*60+startM || minutes > endH*60+endM {
				suggestion := v.message("business_hours_violation",
					fmt.Sprintf("Встречаюсь с %s до %s, давайте выберем время в этом окне?", bh.StartTime, bh.EndTime),
					"{start}", bh.StartTime, "{end}", bh.EndTime)
				return false, []string{"Время вне рабочих часов"}, suggestion
			}
		}
	}

	lb := v.rules.LunchBreak
	if lb.Enabled {
		startH, startM, startErr := parseClock(lb.StartTime)
		endH, endM, endErr := parseClock(lb.EndTime)
		if startErr == nil && endErr == nil {
			minutes := meetingAt.Hour()*60 + meetingAt.Minute()
			if minutes >= startH*60+startM && minutes < endH*60+endM {
				suggestion := v.message("lunch_time",
					fmt.Sprintf("С %s до %s у меня обед, можно чуть раньше или позже?", lb.StartTime, lb.EndTime),
					"{start}", lb.StartTime, "{end}", lb.EndTime)
				return false, []string{"Время обеденного перерыва"}, suggestion
			}
		}
	}

	return true, nil, ""
}

// AvailableSlots returns the preferred times that are still valid for
// the given day.
func (v *Validator) AvailableSlots(dateStr string) []string {
	var available []string
	for _, t := range v.rules.SpecialRules.PreferredTimes {
		if ok, _, _ := v.ValidateMeetingTime(dateStr, t); ok {
			available = append(available, t)
		}
	}
	return available
}

func preferredAt(times []string, i int) string {
	if i < len(times) {
		return times[i]
	}
	if len(times) > 0 {
		return times[len(times)-1]
	}
	return "10:00"
}

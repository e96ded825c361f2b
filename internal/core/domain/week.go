package domain

import (
	"errors"
	"time"
)

var (
	ErrMissingWeekStart = errors.New("week start is not set")
	ErrInvalidDayKey    = errors.New("invalid day key format")
)

const (
	// DaysPerWeek is the number of 24h slots in a tracking week.
	DaysPerWeek = 7

	// DayKeyLayout is the canonical calendar-day key, e.g. "Mon Jan 13 2025".
	DayKeyLayout = "Mon Jan 02 2006"

	// LegacyDayKeyLayout is accepted on read for data written by older clients.
	LegacyDayKeyLayout = "2006-01-02"

	// WeekIDLayout renders a week's identifier from its start date.
	WeekIDLayout = "2006-01-02"

	DefaultAnchorWeekday = time.Sunday
	DefaultAnchorHour    = 17
)

// Anchor is the fixed weekday+hour that defines week boundaries.
// The zero value is not usable; construct via DefaultAnchor or NewAnchor.
type Anchor struct {
	Weekday  time.Weekday
	Hour     int
	Location *time.Location
}

func DefaultAnchor() Anchor {
	return Anchor{Weekday: DefaultAnchorWeekday, Hour: DefaultAnchorHour, Location: time.Local}
}

func NewAnchor(weekday time.Weekday, hour int, loc *time.Location) Anchor {
	if weekday < time.Sunday || weekday > time.Saturday {
		weekday = DefaultAnchorWeekday
	}
	if hour < 0 || hour > 23 {
		hour = DefaultAnchorHour
	}
	if loc == nil {
		loc = time.Local
	}
	return Anchor{Weekday: weekday, Hour: hour, Location: loc}
}

func (a Anchor) location() *time.Location {
	if a.Location == nil {
		return time.Local
	}
	return a.Location
}

// WeekBounds is a half-open tracking week [Start, End).
type WeekBounds struct {
	Start time.Time `json:"weekStartDate"`
	End   time.Time `json:"weekEndDate"`
}

// WeekBounds returns the tracking week enclosing now.
//
// Start is the most recent anchor instant at or before now. If now falls on
// the anchor weekday but before the anchor hour, the boundary steps back a
// full seven days, so the hours before the cutover still belong to the
// previous week. Arithmetic is calendar-day based with the hour pinned
// afterwards, so a DST-shortened or -lengthened local day cannot drift the
// anchor hour.
func (a Anchor) WeekBounds(now time.Time) WeekBounds {
	local := now.In(a.location())

	daysBack := int(local.Weekday()) - int(a.Weekday)
	if daysBack < 0 {
		daysBack += DaysPerWeek
	}
	if local.Weekday() == a.Weekday && local.Hour() < a.Hour {
		daysBack = DaysPerWeek
	}

	start := time.Date(local.Year(), local.Month(), local.Day()-daysBack, a.Hour, 0, 0, 0, a.location())
	end := time.Date(start.Year(), start.Month(), start.Day()+DaysPerWeek, a.Hour, 0, 0, 0, a.location())

	return WeekBounds{Start: start, End: end}
}

// DayIndex reports how many full 24-hour slots have elapsed since weekStart.
// Days in this model run anchor-hour to anchor-hour, not midnight to midnight.
func DayIndex(weekStart, now time.Time) int {
	if now.Before(weekStart) {
		return 0
	}
	return int(now.Sub(weekStart) / (24 * time.Hour))
}

// DayKey renders the canonical key for the day at the given index of the week.
func DayKey(weekStart time.Time, index int) string {
	return weekStart.AddDate(0, 0, index).Format(DayKeyLayout)
}

// ParseDayKey accepts the canonical key plus the legacy ISO form.
func ParseDayKey(key string) (time.Time, error) {
	if t, err := time.Parse(DayKeyLayout, key); err == nil {
		return t, nil
	}
	if t, err := time.Parse(LegacyDayKeyLayout, key); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDayKey
}

// WeekID is the canonical identifier for a week, derived from its start date.
func WeekID(weekStart time.Time) string {
	return weekStart.Format(WeekIDLayout)
}

// DailyTargetFor splits a weekly goal into a per-day target, rounding up.
func DailyTargetFor(weeklyGoal int) int {
	if weeklyGoal <= 0 {
		return 0
	}
	return (weeklyGoal + DaysPerWeek - 1) / DaysPerWeek
}

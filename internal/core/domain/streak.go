package domain

import (
	"sort"
	"time"
)

// DayAchievement is one day of the chronological sequence the streak engine
// scans: a canonical day key plus whether that day's increment met its target.
type DayAchievement struct {
	Date        string `json:"date"`
	Merges      int    `json:"merges"`
	DailyTarget int    `json:"dailyTarget"`
	Achieved    bool   `json:"achievedTarget"`
}

// StreakRun is one maximal run of consecutive achieved days.
type StreakRun struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Length    int    `json:"length"`
}

// StreakSummary is a derived cache: it is always safe to discard and
// recompute from the full achievement sequence.
type StreakSummary struct {
	CurrentStreak     int         `json:"currentStreak"`
	LongestStreak     int         `json:"longestStreak"`
	TotalDaysAchieved int         `json:"totalDaysAchieved"`
	StreakHistory     []StreakRun `json:"streakHistory"`
	LastCalculated    time.Time   `json:"lastCalculated"`
	DataError         string      `json:"error,omitempty"`
}

// StreakConfig carries the externally overridable streak constants.
type StreakConfig struct {
	Milestones []int
	HistoryCap int
}

func DefaultStreakConfig() StreakConfig {
	return StreakConfig{
		Milestones: []int{7, 14, 30, 50, 100},
		HistoryCap: 100,
	}
}

func (c StreakConfig) historyCap() int {
	if c.HistoryCap <= 0 {
		return 100
	}
	return c.HistoryCap
}

// sanitizeAchievements drops entries with unparseable dates, deduplicates by
// calendar day, clamps negative numerics to zero, and returns the sequence
// sorted chronologically. Deduplication keys on the parsed date, not the raw
// string, so a day stored once in the legacy layout and once in the canonical
// layout still counts as one day.
func sanitizeAchievements(days []DayAchievement) []DayAchievement {
	type dated struct {
		day DayAchievement
		at  time.Time
	}

	seen := make(map[string]bool, len(days))
	kept := make([]dated, 0, len(days))
	for _, d := range days {
		at, err := ParseDayKey(d.Date)
		if err != nil {
			continue
		}
		calendarDay := at.Format(LegacyDayKeyLayout)
		if seen[calendarDay] {
			continue
		}
		seen[calendarDay] = true

		if d.Merges < 0 {
			d.Merges = 0
		}
		if d.DailyTarget < 0 {
			d.DailyTarget = 0
		}
		kept = append(kept, dated{day: d, at: at})
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].at.Before(kept[j].at) })

	out := make([]DayAchievement, len(kept))
	for i, d := range kept {
		out[i] = d.day
	}
	return out
}

func consecutiveDays(prev, cur string) bool {
	p, err := ParseDayKey(prev)
	if err != nil {
		return false
	}
	c, err := ParseDayKey(cur)
	if err != nil {
		return false
	}
	days := int(c.Sub(p).Round(24*time.Hour) / (24 * time.Hour))
	return days == 1
}

// CalculateStreaks scans a chronological achievement sequence and produces
// the streak summary.
//
// Consecutive means exactly one day-period apart, not merely adjacent in the
// sparse list: a missing day between two achieved days breaks the run the
// same way a not-achieved day does. Every closed run lands in the history,
// including the run still open at the end of the scan; the history is bounded
// by keeping the longest runs plus the most recent ones. Malformed input is
// sanitized best-effort; only when sanitization empties a non-empty sequence
// does the engine fall back to an all-zero summary with the error flag set.
func CalculateStreaks(days []DayAchievement, cfg StreakConfig, now time.Time) StreakSummary {
	summary := StreakSummary{LastCalculated: now.UTC()}
	if len(days) == 0 {
		return summary
	}

	clean := sanitizeAchievements(days)
	if len(clean) == 0 {
		summary.DataError = "no valid achievement data after sanitization"
		return summary
	}

	var (
		active     int
		activeFrom string
		prevDate   string
		history    []StreakRun
	)

	closeRun := func(endDate string) {
		if active > 0 {
			history = append(history, StreakRun{StartDate: activeFrom, EndDate: endDate, Length: active})
		}
		active = 0
		activeFrom = ""
	}

	for _, day := range clean {
		if day.Achieved {
			summary.TotalDaysAchieved++
			if active > 0 && consecutiveDays(prevDate, day.Date) {
				active++
			} else {
				closeRun(prevDate)
				active = 1
				activeFrom = day.Date
			}
			if active > summary.LongestStreak {
				summary.LongestStreak = active
			}
		} else {
			closeRun(prevDate)
		}
		prevDate = day.Date
	}

	summary.CurrentStreak = active
	closeRun(prevDate)

	summary.StreakHistory = boundHistory(history, cfg.historyCap())
	return summary
}

// boundHistory trims a run list to the cap, retaining the longest runs plus
// the most recent ones, deduplicated and restored to chronological order.
func boundHistory(history []StreakRun, limit int) []StreakRun {
	if len(history) <= limit {
		return history
	}

	byLength := append([]StreakRun(nil), history...)
	sort.SliceStable(byLength, func(i, j int) bool { return byLength[i].Length > byLength[j].Length })

	keep := make(map[StreakRun]bool, limit)
	for _, run := range byLength[:limit/2] {
		keep[run] = true
	}
	// history is already chronological; the most recent runs sit at the tail.
	for i := len(history) - 1; i >= 0 && len(keep) < limit; i-- {
		keep[history[i]] = true
	}

	out := make([]StreakRun, 0, len(keep))
	for _, run := range history {
		if keep[run] {
			out = append(out, run)
			delete(keep, run)
		}
	}
	return out
}

// Milestone reports a threshold crossed by a streak update.
type Milestone struct {
	Reached bool `json:"reached"`
	Value   int  `json:"milestone,omitempty"`
}

// CheckMilestone fires when current crosses a threshold previous had not yet
// reached. Used for notification triggering only; never persisted.
func CheckMilestone(previous, current int, milestones []int) Milestone {
	for _, m := range milestones {
		if previous < m && current >= m {
			return Milestone{Reached: true, Value: m}
		}
	}
	return Milestone{}
}

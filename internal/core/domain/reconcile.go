package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DayProgress is one rendered day of the current week's series.
type DayProgress struct {
	Date      time.Time    `json:"date"`
	DateKey   string       `json:"dateKey"`
	DayOfWeek time.Weekday `json:"dayOfWeek"`
	Merges    int          `json:"merges"`
}

// RecordTotal attributes the cumulative counter to today's slot of the
// current week and refreshes the day's snapshot.
//
// The increment is derived by differencing against the most recent prior day
// that has data, clamped at zero so a forced decrease of the counter can
// never produce a negative daily contribution or touch prior days. Writing
// the same total twice is a no-op; the returned flag tells callers whether a
// save is warranted.
func RecordTotal(s *ProgressState, newTotal int, now time.Time) (bool, error) {
	if s.WeekStart.IsZero() {
		return false, ErrMissingWeekStart
	}
	if newTotal < 0 {
		newTotal = 0
	}

	idx := DayIndex(s.WeekStart, now)
	if idx >= DaysPerWeek {
		idx = DaysPerWeek - 1
	}
	key := DayKey(s.WeekStart, idx)
	weekID := WeekID(s.WeekStart)

	if s.DailyHistory == nil {
		s.DailyHistory = make(DailyHistory)
	}
	week := s.DailyHistory.week(weekID)

	existing, exists := week[key]
	if exists && existing.MergeTotal == newTotal {
		return false, nil
	}

	prev := previousCumulative(s.DailyHistory, weekID, s.WeekStart, idx)
	increment := newTotal - prev
	if increment < 0 {
		increment = 0
	}

	dailyTarget := DailyTargetFor(s.TargetGoal)
	snap := DaySnapshot{
		Date:           key,
		Merges:         increment,
		MergeTotal:     newTotal,
		GoalTarget:     s.TargetGoal,
		DailyTarget:    dailyTarget,
		AchievedTarget: increment >= dailyTarget,
		LastUpdated:    now.UTC(),
	}
	if snap.AchievedTarget {
		if exists && existing.AchievedAt != nil {
			snap.AchievedAt = existing.AchievedAt
		} else {
			at := now.UTC()
			snap.AchievedAt = &at
		}
	}

	week[key] = snap
	s.UpdatedAt = now.UTC()
	return true, nil
}

// previousCumulative scans backward from the day before index for the most
// recent day with data and returns its cumulative total, or 0 when the week
// has no earlier entries.
func previousCumulative(h DailyHistory, weekID string, weekStart time.Time, index int) int {
	days := h[weekID]
	if days == nil {
		return 0
	}
	for i := index - 1; i >= 0; i-- {
		if snap, ok := days[DayKey(weekStart, i)]; ok {
			return snap.MergeTotal
		}
	}
	return 0
}

// ReconstructDailyProgress derives the per-day increment series for all seven
// days of the current week.
//
// The running baseline only advances on days that actually have a snapshot,
// so a gap cannot corrupt the increments of later days. Missing past days
// render as explicit zeros, today falls back to the live counter when it has
// no snapshot yet, and missing future days are omitted entirely — imported
// data for a future day still renders.
func ReconstructDailyProgress(s *ProgressState, now time.Time) ([]DayProgress, error) {
	if s.WeekStart.IsZero() {
		return nil, ErrMissingWeekStart
	}

	todayIdx := DayIndex(s.WeekStart, now)
	if todayIdx >= DaysPerWeek {
		todayIdx = DaysPerWeek - 1
	}
	weekID := WeekID(s.WeekStart)
	days := s.DailyHistory[weekID]

	out := make([]DayProgress, 0, DaysPerWeek)
	prevTotal := 0
	for i := 0; i < DaysPerWeek; i++ {
		date := s.WeekStart.AddDate(0, 0, i)
		key := DayKey(s.WeekStart, i)

		snap, ok := days[key]
		switch {
		case ok:
			increment := snap.MergeTotal - prevTotal
			if increment < 0 {
				increment = 0
			}
			prevTotal = snap.MergeTotal
			out = append(out, DayProgress{Date: date, DateKey: key, DayOfWeek: date.Weekday(), Merges: increment})
		case i < todayIdx:
			out = append(out, DayProgress{Date: date, DateKey: key, DayOfWeek: date.Weekday(), Merges: 0})
		case i == todayIdx:
			increment := s.CurrentMerges - prevTotal
			if increment < 0 {
				increment = 0
			}
			out = append(out, DayProgress{Date: date, DateKey: key, DayOfWeek: date.Weekday(), Merges: increment})
		}
	}

	return out, nil
}

// MigrateLegacyHistory finishes the normalization the wire decoder started:
// entries flagged as migrated (or missing targets) get their daily target
// computed from the goal recorded for the day, and achievement flags are
// re-derived everywhere. Running it on already-migrated data changes nothing
// except absent timestamps.
func MigrateLegacyHistory(s *ProgressState, now time.Time) bool {
	changed := false
	for _, days := range s.DailyHistory {
		for key, snap := range days {
			orig := snap

			if snap.Date == "" {
				snap.Date = key
			}
			if snap.GoalTarget <= 0 {
				snap.GoalTarget = s.TargetGoal
			}
			if snap.DailyTarget <= 0 {
				snap.DailyTarget = DailyTargetFor(snap.GoalTarget)
			}
			if snap.MergeTotal <= 0 && snap.Merges > 0 {
				snap.MergeTotal = snap.Merges
			}
			snap.AchievedTarget = snap.Merges >= snap.DailyTarget
			if snap.LastUpdated.IsZero() {
				snap.LastUpdated = now.UTC()
			}

			if snap != orig {
				days[key] = snap
				changed = true
			}
		}
	}

	// A live counter with an empty current week means the history predates
	// per-day tracking: seed today so the series is not blank.
	weekID := WeekID(s.WeekStart)
	if s.CurrentMerges > 0 && len(s.DailyHistory[weekID]) == 0 {
		if ok, err := RecordTotal(s, s.CurrentMerges, now); err == nil && ok {
			changed = true
		}
	}

	return changed
}

// ValidationReport is the outcome of one consistency pass over the history.
type ValidationReport struct {
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Stats    ValidationStats `json:"stats"`
	Repaired bool            `json:"repaired"`
}

type ValidationStats struct {
	TotalEntries             int `json:"totalEntries"`
	ValidEntries             int `json:"validEntries"`
	MalformedKeys            int `json:"malformedKeys"`
	NumericRepairs           int `json:"numericRepairs"`
	InconsistentAchievements int `json:"inconsistentAchievements"`
	MissingFields            int `json:"missingFields"`
}

var weekIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var isoWeekIDPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// ValidateAndRepair scans every history entry for malformed keys, invalid
// numeric fields, achievement flags that disagree with their derivation, and
// missing required fields, repairing deterministically in place. Nothing here
// ever fails: data-quality problems degrade to clamped defaults and are
// recorded, never thrown. The report tells the caller whether anything
// changed and therefore whether persisting is worthwhile.
func ValidateAndRepair(s *ProgressState, now time.Time) ValidationReport {
	report := ValidationReport{}

	for weekID, days := range s.DailyHistory {
		if !weekIDPattern.MatchString(weekID) {
			if isoWeekIDPattern.MatchString(weekID) {
				report.Warnings = append(report.Warnings, fmt.Sprintf("week %s uses the ISO-week id form", weekID))
			} else {
				report.Warnings = append(report.Warnings, fmt.Sprintf("invalid week id format: %s", weekID))
			}
		}

		for key, snap := range days {
			report.Stats.TotalEntries++

			if _, err := ParseDayKey(key); err != nil {
				report.Stats.MalformedKeys++
				report.Errors = append(report.Errors, fmt.Sprintf("malformed day key %q in week %s", key, weekID))
				continue
			}

			orig := snap

			if snap.Date == "" {
				snap.Date = key
				report.Stats.MissingFields++
			} else if snap.Date != key {
				report.Warnings = append(report.Warnings, fmt.Sprintf("date field mismatch for %s: stored as %s", key, snap.Date))
				snap.Date = key
			}

			if snap.Merges < 0 {
				report.Warnings = append(report.Warnings, fmt.Sprintf("negative merge count for %s clamped to 0", key))
				snap.Merges = 0
				report.Stats.NumericRepairs++
			}
			if snap.MergeTotal < 0 {
				report.Warnings = append(report.Warnings, fmt.Sprintf("negative cumulative total for %s clamped to 0", key))
				snap.MergeTotal = 0
				report.Stats.NumericRepairs++
			}
			if snap.GoalTarget <= 0 {
				snap.GoalTarget = s.TargetGoal
				report.Stats.MissingFields++
			}
			if snap.DailyTarget <= 0 {
				snap.DailyTarget = DailyTargetFor(snap.GoalTarget)
				report.Warnings = append(report.Warnings, fmt.Sprintf("invalid daily target for %s reset to %d", key, snap.DailyTarget))
				report.Stats.NumericRepairs++
			}

			expected := snap.Merges >= snap.DailyTarget
			if snap.AchievedTarget != expected {
				report.Stats.InconsistentAchievements++
				report.Warnings = append(report.Warnings, fmt.Sprintf("achievement flag for %s corrected to %t", key, expected))
				snap.AchievedTarget = expected
			}

			if snap.LastUpdated.IsZero() {
				snap.LastUpdated = now.UTC()
				report.Stats.MissingFields++
			}

			if snap != orig {
				days[key] = snap
				report.Repaired = true
			} else {
				report.Stats.ValidEntries++
			}
		}
	}

	return report
}

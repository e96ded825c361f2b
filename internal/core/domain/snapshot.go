package domain

import (
	"encoding/json"
	"time"
)

// DaySnapshot is the recorded progress for a single day slot of a week.
// MergeTotal is authoritative: it is the cumulative weekly counter as of the
// last update attributed to that day. Merges is the derived per-day increment
// and is recomputed whenever history is reconciled.
type DaySnapshot struct {
	Date           string     `json:"date"`
	Merges         int        `json:"merges"`
	MergeTotal     int        `json:"mergeTotal"`
	GoalTarget     int        `json:"goalTarget"`
	DailyTarget    int        `json:"dailyTarget"`
	AchievedTarget bool       `json:"achievedTarget"`
	LastUpdated    time.Time  `json:"lastUpdated"`
	AchievedAt     *time.Time `json:"achievedAt,omitempty"`
	Migrated       bool       `json:"migrated,omitempty"`
}

// RawDayEntry is the tagged variant found in persisted history: either a bare
// integer (legacy shape, meaning the cumulative total as of that day) or a
// structured snapshot. Unrecognized shapes decode with Drop set and are
// discarded during normalization.
type RawDayEntry struct {
	Legacy      bool
	LegacyTotal int
	Snapshot    DaySnapshot
	Drop        bool
}

// rawSnapshot tolerates timestamp fields written either as RFC3339 strings
// (current clients) or as millisecond epoch numbers (legacy clients).
type rawSnapshot struct {
	Date           string          `json:"date"`
	Merges         *int            `json:"merges"`
	MergeTotal     *int            `json:"mergeTotal"`
	GoalTarget     *int            `json:"goalTarget"`
	DailyTarget    *int            `json:"dailyTarget"`
	AchievedTarget *bool           `json:"achievedTarget"`
	LastUpdated    json.RawMessage `json:"lastUpdated"`
	AchievedAt     json.RawMessage `json:"achievedAt"`
	Migrated       bool            `json:"migrated"`
}

func decodeFlexibleTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC(), true
	}

	return time.Time{}, false
}

func (e *RawDayEntry) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		e.Legacy = true
		e.LegacyTotal = int(n)
		if e.LegacyTotal < 0 {
			e.LegacyTotal = 0
		}
		return nil
	}

	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not a number and not an object: strings, booleans, arrays are
		// corrupted entries and get dropped by normalization.
		e.Drop = true
		return nil
	}

	snap := DaySnapshot{Date: raw.Date, Migrated: raw.Migrated}
	if raw.Merges != nil {
		snap.Merges = *raw.Merges
	}
	if raw.MergeTotal != nil {
		snap.MergeTotal = *raw.MergeTotal
	} else {
		snap.MergeTotal = snap.Merges
	}
	if raw.GoalTarget != nil {
		snap.GoalTarget = *raw.GoalTarget
	}
	if raw.DailyTarget != nil {
		snap.DailyTarget = *raw.DailyTarget
	}
	if raw.AchievedTarget != nil {
		snap.AchievedTarget = *raw.AchievedTarget
	}
	if t, ok := decodeFlexibleTime(raw.LastUpdated); ok {
		snap.LastUpdated = t
	}
	if t, ok := decodeFlexibleTime(raw.AchievedAt); ok {
		snap.AchievedAt = &t
	}

	e.Snapshot = snap
	return nil
}

func (e RawDayEntry) MarshalJSON() ([]byte, error) {
	if e.Legacy {
		return json.Marshal(e.LegacyTotal)
	}
	return json.Marshal(e.Snapshot)
}

// DailyHistory is the sparse day-keyed map of snapshots, grouped by week ID.
// Absence of a key means "unknown", not "zero".
type DailyHistory map[string]map[string]DaySnapshot

// UnmarshalJSON normalizes the raw wire shape in one place: legacy integers
// become structured snapshots (targets are filled in later, once the owning
// state's goal is known) and corrupted entries are dropped.
func (h *DailyHistory) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]RawDayEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(DailyHistory, len(raw))
	for weekID, days := range raw {
		week := make(map[string]DaySnapshot, len(days))
		for key, entry := range days {
			switch {
			case entry.Drop:
				continue
			case entry.Legacy:
				week[key] = DaySnapshot{
					Date:       key,
					Merges:     entry.LegacyTotal,
					MergeTotal: entry.LegacyTotal,
					Migrated:   true,
				}
			default:
				week[key] = entry.Snapshot
			}
		}
		out[weekID] = week
	}

	*h = out
	return nil
}

func (h DailyHistory) week(weekID string) map[string]DaySnapshot {
	if h[weekID] == nil {
		h[weekID] = make(map[string]DaySnapshot)
	}
	return h[weekID]
}

// Clone deep-copies the history so callers can hand out state without
// aliasing the maps.
func (h DailyHistory) Clone() DailyHistory {
	if h == nil {
		return nil
	}
	out := make(DailyHistory, len(h))
	for weekID, days := range h {
		week := make(map[string]DaySnapshot, len(days))
		for key, snap := range days {
			if snap.AchievedAt != nil {
				at := *snap.AchievedAt
				snap.AchievedAt = &at
			}
			week[key] = snap
		}
		out[weekID] = week
	}
	return out
}

package domain

import (
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("weekly record not found")

// WeeklyRecord is the immutable archive of one completed week, created
// exactly once when the week boundary is crossed. Upserts are keyed by
// (user, weekId) so a re-entrant boundary check cannot duplicate it.
type WeeklyRecord struct {
	WeekID            string        `json:"weekId"`
	WeekStart         time.Time     `json:"weekStart"`
	WeekEnd           time.Time     `json:"weekEnd"`
	FinalMerges       int           `json:"finalMerges"`
	TargetGoal        int           `json:"targetGoal"`
	MergeRatePer10Min float64       `json:"mergeRatePer10Min"`
	Completed         bool          `json:"completed"`
	AchievementRate   float64       `json:"achievementRate"`
	DailyProgress     []DayProgress `json:"dailyProgress"`
	CompletedAt       time.Time     `json:"completedAt"`
}

// NewWeeklyRecord snapshots the state's current week into an archive record.
func NewWeeklyRecord(s *ProgressState, now time.Time) (*WeeklyRecord, error) {
	if s.WeekStart.IsZero() {
		return nil, ErrMissingWeekStart
	}

	daily, err := ReconstructDailyProgress(s, now)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if s.TargetGoal > 0 {
		rate = float64(s.CurrentMerges) / float64(s.TargetGoal) * 100
	}

	return &WeeklyRecord{
		WeekID:            WeekID(s.WeekStart),
		WeekStart:         s.WeekStart,
		WeekEnd:           s.WeekEnd,
		FinalMerges:       s.CurrentMerges,
		TargetGoal:        s.TargetGoal,
		MergeRatePer10Min: s.MergeRatePer10Min,
		Completed:         s.CurrentMerges >= s.TargetGoal,
		AchievementRate:   rate,
		DailyProgress:     daily,
		CompletedAt:       now.UTC(),
	}, nil
}

package domain

import (
	"errors"
	"math"
	"time"
)

var (
	ErrProgressInvalidUserID = errors.New("invalid user id")
	ErrStateNotFound         = errors.New("progress state not found")
	ErrStateConflict         = errors.New("progress state version conflict")
)

const DefaultTargetGoal = 50000

// ProgressState is the single per-user aggregate: the live weekly counter,
// the declared rate, the goal, the current week bounds, and the sparse
// day-keyed history of every week seen so far.
type ProgressState struct {
	UserID            string       `json:"-" db:"user_id"`
	CurrentMerges     int          `json:"currentMerges"`
	MergeRatePer10Min float64      `json:"mergeRatePer10Min"`
	TargetGoal        int          `json:"targetGoal"`
	WeekStart         time.Time    `json:"weekStartDate"`
	WeekEnd           time.Time    `json:"weekEndDate"`
	DailyHistory      DailyHistory `json:"dailyHistory"`

	// Version backs optimistic locking in the store; it never travels to
	// clients or export bundles.
	Version   int       `json:"-" db:"version"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

func NewProgressState(userID string, anchor Anchor, now time.Time) (*ProgressState, error) {
	if userID == "" {
		return nil, ErrProgressInvalidUserID
	}
	bounds := anchor.WeekBounds(now)
	return &ProgressState{
		UserID:       userID,
		TargetGoal:   DefaultTargetGoal,
		WeekStart:    bounds.Start,
		WeekEnd:      bounds.End,
		DailyHistory: make(DailyHistory),
		UpdatedAt:    now.UTC(),
	}, nil
}

// Bounds returns the current week as a WeekBounds value.
func (s *ProgressState) Bounds() WeekBounds {
	return WeekBounds{Start: s.WeekStart, End: s.WeekEnd}
}

// SetBounds re-anchors the state to the week enclosing now. Used on first
// load and on every boundary crossing; bounds are always recomputed from the
// anchor rule, never advanced by a fixed step, so the state lands on the
// correct week even after long suspensions.
func (s *ProgressState) SetBounds(anchor Anchor, now time.Time) {
	bounds := anchor.WeekBounds(now)
	s.WeekStart = bounds.Start
	s.WeekEnd = bounds.End
}

// WeekExpired reports whether now has passed the current week's end.
func (s *ProgressState) WeekExpired(now time.Time) bool {
	return !s.WeekEnd.IsZero() && !now.Before(s.WeekEnd)
}

// SetTargetGoal clamps the weekly goal; zero, negative, or non-finite input
// falls back to the default.
func (s *ProgressState) SetTargetGoal(goal int) {
	if goal <= 0 {
		goal = DefaultTargetGoal
	}
	s.TargetGoal = goal
}

// SetMergeRate clamps the declared per-10-minute rate to a finite,
// non-negative value.
func (s *ProgressState) SetMergeRate(rate float64) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		rate = 0
	}
	s.MergeRatePer10Min = rate
}

// ProgressPercent is how far the counter is toward the goal, capped at 100.
func (s *ProgressState) ProgressPercent() float64 {
	if s.TargetGoal <= 0 {
		return 0
	}
	pct := float64(s.CurrentMerges) / float64(s.TargetGoal) * 100
	return math.Min(100, pct)
}

// Clone deep-copies the state.
func (s *ProgressState) Clone() *ProgressState {
	out := *s
	out.DailyHistory = s.DailyHistory.Clone()
	return &out
}

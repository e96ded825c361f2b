package domain

import (
	"errors"
	"time"
)

// ExportVersion identifies the current bundle layout. Import tolerates skew:
// unknown or missing optional sections are treated as absent, never fatal.
const ExportVersion = 2

var ErrEmptyBundle = errors.New("import bundle has no progress data")

// ExportBundle is the portable form of everything the engine persists for one
// user. It is the payload behind both file export/import and sync codes.
type ExportBundle struct {
	CurrentProgress *ProgressState  `json:"currentProgress"`
	WeeklyHistory   []*WeeklyRecord `json:"weeklyHistory"`
	StreakSummary   *StreakSummary  `json:"streakSummary,omitempty"`
	ExportedAt      time.Time       `json:"exportedAt"`
	Version         int             `json:"version"`
}

// Validate checks the minimum an importable bundle must carry. Weekly history
// and streak summary are optional; the streak summary is a cache and gets
// recomputed after import anyway.
func (b *ExportBundle) Validate() error {
	if b == nil || b.CurrentProgress == nil {
		return ErrEmptyBundle
	}
	return nil
}

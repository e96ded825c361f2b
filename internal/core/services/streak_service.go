package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// StreakService rebuilds the streak summary from the full daily history. The
// summary is a cache: Recalculate always derives it from scratch, so a corrupt
// or missing summary heals on the next pass.
type StreakService struct {
	repo domain.ProgressRepository
	cfg  domain.StreakConfig

	Now func() time.Time
}

func NewStreakService(repo domain.ProgressRepository, cfg domain.StreakConfig) *StreakService {
	return &StreakService{
		repo: repo,
		cfg:  cfg,
		Now:  time.Now,
	}
}

// Get returns the cached summary, computing it when none exists yet.
func (s *StreakService) Get(ctx context.Context, userID string) (*domain.StreakSummary, error) {
	summary, err := s.repo.LoadStreakSummary(ctx, userID)
	if errors.Is(err, domain.ErrSummaryNotFound) {
		summary, _, err = s.Recalculate(ctx, userID)
		return summary, err
	}
	if err != nil {
		return nil, fmt.Errorf("streak service: load summary: %w", err)
	}
	return summary, nil
}

// Recalculate flattens every week of history into one chronological
// achievement sequence, rebuilds the summary, and reports any milestone the
// update crossed relative to the previously stored summary.
func (s *StreakService) Recalculate(ctx context.Context, userID string) (*domain.StreakSummary, domain.Milestone, error) {
	state, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return nil, domain.Milestone{}, fmt.Errorf("streak service: load state: %w", err)
	}

	previousStreak := 0
	if previous, err := s.repo.LoadStreakSummary(ctx, userID); err == nil {
		previousStreak = previous.CurrentStreak
	} else if !errors.Is(err, domain.ErrSummaryNotFound) {
		return nil, domain.Milestone{}, fmt.Errorf("streak service: load previous summary: %w", err)
	}

	summary := domain.CalculateStreaks(flattenAchievements(state.DailyHistory), s.cfg, s.Now())
	milestone := domain.CheckMilestone(previousStreak, summary.CurrentStreak, s.cfg.Milestones)

	if err := s.repo.SaveStreakSummary(ctx, userID, &summary); err != nil {
		return nil, domain.Milestone{}, fmt.Errorf("streak service: save summary: %w", err)
	}
	return &summary, milestone, nil
}

// flattenAchievements turns the week-grouped history into a flat day sequence.
// Ordering and deduplication are the streak engine's job.
func flattenAchievements(history domain.DailyHistory) []domain.DayAchievement {
	var days []domain.DayAchievement
	for _, week := range history {
		for key, snap := range week {
			days = append(days, domain.DayAchievement{
				Date:        key,
				Merges:      snap.Merges,
				DailyTarget: snap.DailyTarget,
				Achieved:    snap.AchievedTarget,
			})
		}
	}
	return days
}

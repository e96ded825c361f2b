package services

import (
	"context"
	"fmt"

	"github.com/lcollard/mergepace/internal/core/domain"
)

// StatsService derives the read-only views: the live week dashboard and the
// aggregates over the archived weeks. It never writes; reconciliation happens
// inside ProgressService.Get before any number is computed.
type StatsService struct {
	repo     domain.ProgressRepository
	progress *ProgressService
}

func NewStatsService(repo domain.ProgressRepository, progress *ProgressService) *StatsService {
	return &StatsService{
		repo:     repo,
		progress: progress,
	}
}

// WeekStatus is the full dashboard for the current week.
type WeekStatus struct {
	CurrentMerges     int                   `json:"currentMerges"`
	TargetGoal        int                   `json:"targetGoal"`
	MergeRatePer10Min float64               `json:"mergeRatePer10Min"`
	ProgressPercent   float64               `json:"progressPercent"`
	WeekStart         string                `json:"weekStartDate"`
	WeekEnd           string                `json:"weekEndDate"`
	Requirements      domain.Requirements   `json:"requirements"`
	Pace              domain.Pace           `json:"pace"`
	Status            domain.Status         `json:"status"`
	Forecast          domain.FinishForecast `json:"forecast"`
	DailyProgress     []domain.DayProgress  `json:"dailyProgress"`
	RecommendedDaily  int                   `json:"recommendedDailyTarget"`
	ProjectedFinal    int                   `json:"projectedFinalMerges"`
	CompletionChance  int                   `json:"completionProbability"`
}

func (s *StatsService) GetWeekStatus(ctx context.Context, userID string) (*WeekStatus, error) {
	state, err := s.progress.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.progress.Now()
	bounds := state.Bounds()

	req := domain.ComputeRequirements(state.CurrentMerges, state.TargetGoal, state.MergeRatePer10Min, bounds, now)
	pace := domain.ComputePace(state.CurrentMerges, req.MergesNeeded, bounds.Start, req.HoursRemaining, now)
	status := domain.ClassifyStatus(state.CurrentMerges, state.TargetGoal, pace.CurrentPace, pace.RequiredPace)
	forecast := domain.PredictFinish(req.MergesNeeded, pace.CurrentPace, bounds.End, now)

	daily, err := domain.ReconstructDailyProgress(state, now)
	if err != nil {
		return nil, fmt.Errorf("stats service: daily series: %w", err)
	}

	projected := domain.ProjectFinalMerges(state.CurrentMerges, bounds, now)

	return &WeekStatus{
		CurrentMerges:     state.CurrentMerges,
		TargetGoal:        state.TargetGoal,
		MergeRatePer10Min: state.MergeRatePer10Min,
		ProgressPercent:   state.ProgressPercent(),
		WeekStart:         bounds.Start.Format("2006-01-02"),
		WeekEnd:           bounds.End.Format("2006-01-02"),
		Requirements:      req,
		Pace:              pace,
		Status:            status,
		Forecast:          forecast,
		DailyProgress:     daily,
		RecommendedDaily:  domain.RecommendedDailyTarget(state.CurrentMerges, state.TargetGoal, bounds.End, now),
		ProjectedFinal:    projected,
		CompletionChance:  domain.CompletionProbability(projected, state.TargetGoal),
	}, nil
}

// HistoryStats bundles the archived weeks with their aggregates.
type HistoryStats struct {
	Weeks   []*domain.WeeklyRecord `json:"weeks"`
	Summary *domain.HistorySummary `json:"summary,omitempty"`
}

func (s *StatsService) GetHistoryStats(ctx context.Context, userID string) (*HistoryStats, error) {
	records, err := s.repo.ListWeeklyRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("stats service: list archive: %w", err)
	}

	return &HistoryStats{
		Weeks:   records,
		Summary: domain.SummarizeHistory(records),
	}, nil
}

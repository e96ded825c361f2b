package domain

import (
	"math"
	"time"
)

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// HistorySummary aggregates the archived weeks.
type HistorySummary struct {
	TotalWeeks             int           `json:"totalWeeks"`
	CompletedWeeks         int           `json:"completedWeeks"`
	CompletionRate         float64       `json:"completionRate"`
	AverageAchievementRate float64       `json:"averageAchievementRate"`
	BestWeek               *WeeklyRecord `json:"bestWeek,omitempty"`
	Efficiency             *Efficiency   `json:"efficiency,omitempty"`
	Trend                  Trend         `json:"trend"`
}

// Efficiency summarizes the declared rates across archived weeks.
type Efficiency struct {
	OverallEfficiency float64 `json:"overallEfficiency"`
	AverageRate       float64 `json:"averageRate"`
	BestRate          float64 `json:"bestRate"`
	WorstRate         float64 `json:"worstRate"`
	RateConsistency   float64 `json:"rateConsistency"`
}

// SummarizeHistory computes the archive aggregates; nil when there is no
// history yet.
func SummarizeHistory(records []*WeeklyRecord) *HistorySummary {
	if len(records) == 0 {
		return nil
	}

	summary := &HistorySummary{TotalWeeks: len(records), Trend: historyTrend(records)}

	var rateSum float64
	best := records[0]
	for _, rec := range records {
		if rec.Completed {
			summary.CompletedWeeks++
		}
		rateSum += rec.AchievementRate
		if rec.AchievementRate > best.AchievementRate {
			best = rec
		}
	}

	summary.CompletionRate = float64(summary.CompletedWeeks) / float64(len(records)) * 100
	summary.AverageAchievementRate = rateSum / float64(len(records))
	summary.BestWeek = best
	summary.Efficiency = historyEfficiency(records)
	return summary
}

func historyEfficiency(records []*WeeklyRecord) *Efficiency {
	var totalMerges, totalTargets int
	var rateSum float64
	best := math.Inf(-1)
	worst := math.Inf(1)

	for _, rec := range records {
		totalMerges += rec.FinalMerges
		totalTargets += rec.TargetGoal
		rateSum += rec.MergeRatePer10Min
		best = math.Max(best, rec.MergeRatePer10Min)
		worst = math.Min(worst, rec.MergeRatePer10Min)
	}

	eff := &Efficiency{
		AverageRate:     rateSum / float64(len(records)),
		BestRate:        best,
		WorstRate:       worst,
		RateConsistency: rateConsistency(records),
	}
	if totalTargets > 0 {
		eff.OverallEfficiency = float64(totalMerges) / float64(totalTargets) * 100
	}
	return eff
}

// rateConsistency maps the rate's standard deviation to a 0-100 score; a
// perfectly steady rate scores 100.
func rateConsistency(records []*WeeklyRecord) float64 {
	if len(records) < 2 {
		return 100
	}

	var sum float64
	for _, rec := range records {
		sum += rec.MergeRatePer10Min
	}
	mean := sum / float64(len(records))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, rec := range records {
		d := rec.MergeRatePer10Min - mean
		variance += d * d
	}
	variance /= float64(len(records))

	return math.Max(0, 100-math.Sqrt(variance)/mean*100)
}

// historyTrend compares achievement rates across the last four weeks.
func historyTrend(records []*WeeklyRecord) Trend {
	recent := records
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	if len(recent) < 2 {
		return TrendStable
	}

	var delta float64
	for i := 1; i < len(recent); i++ {
		delta += recent[i].AchievementRate - recent[i-1].AchievementRate
	}
	delta /= float64(len(recent) - 1)

	switch {
	case delta > 5:
		return TrendImproving
	case delta < -5:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// CompletionProbability bands the projected-final/goal ratio into a rough
// likelihood percentage.
func CompletionProbability(projectedFinal, targetGoal int) int {
	if targetGoal <= 0 {
		return 0
	}
	ratio := float64(projectedFinal) / float64(targetGoal)
	switch {
	case ratio >= 1.1:
		return 95
	case ratio >= 1.05:
		return 85
	case ratio >= 1.0:
		return 75
	case ratio >= 0.95:
		return 60
	case ratio >= 0.9:
		return 45
	case ratio >= 0.8:
		return 30
	default:
		return 15
	}
}

// RecommendedDailyTarget spreads the remaining work over the remaining days,
// rounded up, with the final day floored at one.
func RecommendedDailyTarget(currentMerges, targetGoal int, weekEnd, now time.Time) int {
	remaining := targetGoal - currentMerges
	if remaining <= 0 {
		return 0
	}
	days := int(math.Ceil(weekEnd.Sub(now).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return (remaining + days - 1) / days
}

// ProjectFinalMerges extrapolates the week's final total from elapsed-time
// progress. Returns the current total when the week has barely started.
func ProjectFinalMerges(currentMerges int, bounds WeekBounds, now time.Time) int {
	total := bounds.End.Sub(bounds.Start)
	if total <= 0 {
		return currentMerges
	}
	elapsed := now.Sub(bounds.Start)
	progress := float64(elapsed) / float64(total)
	if progress <= 0.01 {
		return currentMerges
	}
	if progress > 1 {
		progress = 1
	}
	return int(float64(currentMerges) / progress)
}

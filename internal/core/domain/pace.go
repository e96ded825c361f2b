package domain

import (
	"math"
	"time"
)

// MergeRateMultiplier converts the declared per-10-minute rate to hourly.
const MergeRateMultiplier = 6

type StatusLevel string

const (
	StatusCompleted StatusLevel = "completed"
	StatusExcellent StatusLevel = "excellent"
	StatusGood      StatusLevel = "good"
	StatusOnTrack   StatusLevel = "on-track"
	StatusClose     StatusLevel = "close"
	StatusBehind    StatusLevel = "behind"
	StatusCritical  StatusLevel = "critical"
	StatusNoData    StatusLevel = "no-data"
)

// Requirements is the remaining-work arithmetic for the current week.
type Requirements struct {
	MergesNeeded       int     `json:"mergesNeeded"`
	HoursRequired      float64 `json:"hoursRequired"`
	AverageHoursPerDay float64 `json:"averageHoursPerDay"`
	HoursRemaining     float64 `json:"hoursRemaining"`
	DaysRemaining      float64 `json:"daysRemaining"`
}

// ComputeRequirements never fails: a zero rate yields zero hours required
// rather than an estimate, and all remaining-time values clamp at zero once
// the week is over.
func ComputeRequirements(currentMerges, targetGoal int, ratePer10Min float64, bounds WeekBounds, now time.Time) Requirements {
	if math.IsNaN(ratePer10Min) || math.IsInf(ratePer10Min, 0) || ratePer10Min < 0 {
		ratePer10Min = 0
	}

	mergesNeeded := targetGoal - currentMerges
	if mergesNeeded < 0 {
		mergesNeeded = 0
	}

	ratePerHour := ratePer10Min * MergeRateMultiplier
	hoursRequired := 0.0
	if ratePerHour > 0 {
		hoursRequired = float64(mergesNeeded) / ratePerHour
	}

	remaining := bounds.End.Sub(now)
	hoursRemaining := math.Max(0, remaining.Hours())
	daysRemaining := math.Max(0, remaining.Hours()/24)

	return Requirements{
		MergesNeeded:       mergesNeeded,
		HoursRequired:      hoursRequired,
		AverageHoursPerDay: hoursRequired / math.Max(1, daysRemaining),
		HoursRemaining:     hoursRemaining,
		DaysRemaining:      daysRemaining,
	}
}

// Pace compares the achieved throughput against what the remaining time
// demands.
type Pace struct {
	CurrentPace     float64 `json:"currentPace"`
	RequiredPace    float64 `json:"requiredPace"`
	HoursSinceStart float64 `json:"hoursSinceStart"`
	OnTrack         bool    `json:"isOnTrack"`
}

// ComputePace floors elapsed time at one hour and remaining time at one hour
// so neither the first minutes of a week nor its final stretch can blow up
// the division.
func ComputePace(currentMerges, mergesNeeded int, weekStart time.Time, hoursRemaining float64, now time.Time) Pace {
	hoursSinceStart := math.Max(1, now.Sub(weekStart).Hours())
	currentPace := float64(currentMerges) / hoursSinceStart
	requiredPace := float64(mergesNeeded) / math.Max(1, hoursRemaining)

	return Pace{
		CurrentPace:     currentPace,
		RequiredPace:    requiredPace,
		HoursSinceStart: hoursSinceStart,
		OnTrack:         currentPace >= requiredPace || mergesNeeded <= 0,
	}
}

// Status is the banded classification of the week's trajectory.
type Status struct {
	Level     StatusLevel `json:"level"`
	PaceRatio float64     `json:"paceRatio"`
}

// ClassifyStatus bands the current/required pace ratio. Bands are ordered and
// exhaustive; ties resolve upward to the better band.
func ClassifyStatus(currentMerges, targetGoal int, currentPace, requiredPace float64) Status {
	if targetGoal-currentMerges <= 0 {
		return Status{Level: StatusCompleted, PaceRatio: 1}
	}

	ratio := 0.0
	if requiredPace > 0 {
		ratio = currentPace / requiredPace
	}

	switch {
	case ratio >= 1.5:
		return Status{Level: StatusExcellent, PaceRatio: ratio}
	case ratio >= 1.2:
		return Status{Level: StatusGood, PaceRatio: ratio}
	case ratio >= 1.0:
		return Status{Level: StatusOnTrack, PaceRatio: ratio}
	case ratio >= 0.85:
		return Status{Level: StatusClose, PaceRatio: ratio}
	case ratio >= 0.6:
		return Status{Level: StatusBehind, PaceRatio: ratio}
	default:
		return Status{Level: StatusCritical, PaceRatio: ratio}
	}
}

// FinishForecast extrapolates a finish instant from the achieved pace.
type FinishForecast struct {
	Level      StatusLevel `json:"level"`
	FinishAt   *time.Time  `json:"finishAt,omitempty"`
	OnTime     bool        `json:"onTime"`
	DeltaHours float64     `json:"deltaHours"`
}

// PredictFinish returns StatusCompleted when nothing remains and StatusNoData
// when the pace cannot support an extrapolation. Otherwise the gap between
// the projected finish and the deadline is banded: more than 24h early is
// excellent, more than 6h is good, within 6h is on-track, and lateness
// mirrors into behind/critical at the 24h mark.
func PredictFinish(mergesNeeded int, currentPace float64, weekEnd, now time.Time) FinishForecast {
	if mergesNeeded <= 0 {
		return FinishForecast{Level: StatusCompleted, OnTime: true}
	}
	if currentPace <= 0 || math.IsNaN(currentPace) || math.IsInf(currentPace, 0) {
		return FinishForecast{Level: StatusNoData}
	}

	hoursToFinish := float64(mergesNeeded) / currentPace
	finish := now.Add(time.Duration(hoursToFinish * float64(time.Hour)))
	onTime := !finish.After(weekEnd)
	delta := math.Abs(finish.Sub(weekEnd).Hours())

	var level StatusLevel
	if onTime {
		switch {
		case delta > 24:
			level = StatusExcellent
		case delta > 6:
			level = StatusGood
		default:
			level = StatusOnTrack
		}
	} else {
		if delta > 24 {
			level = StatusCritical
		} else {
			level = StatusBehind
		}
	}

	return FinishForecast{Level: level, FinishAt: &finish, OnTime: onTime, DeltaHours: delta}
}

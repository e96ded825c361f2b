package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lcollard/mergepace/internal/core/domain"
)

func TestComputeRequirements(t *testing.T) {
	t.Parallel()

	weekStart := time.Date(2025, 1, 12, 17, 0, 0, 0, time.UTC)
	bounds := domain.WeekBounds{Start: weekStart, End: weekStart.Add(7 * 24 * time.Hour)}

	t.Run("Should derive hours from the declared rate", func(t *testing.T) {
		t.Parallel()

		now := bounds.End.Add(-50 * time.Hour)
		req := domain.ComputeRequirements(40000, 50000, 500, bounds, now)

		assert.Equal(t, 10000, req.MergesNeeded)
		// 500 per 10 minutes is 3000 per hour.
		assert.InDelta(t, 10000.0/3000.0, req.HoursRequired, 1e-6)
		assert.InDelta(t, 50, req.HoursRemaining, 1e-6)
	})

	t.Run("Should yield zero hours at zero rate", func(t *testing.T) {
		t.Parallel()

		now := bounds.Start.Add(24 * time.Hour)
		req := domain.ComputeRequirements(1000, 50000, 0, bounds, now)

		assert.Zero(t, req.HoursRequired)
	})

	t.Run("Should clamp remaining time after the week ends", func(t *testing.T) {
		t.Parallel()

		now := bounds.End.Add(3 * time.Hour)
		req := domain.ComputeRequirements(1000, 50000, 500, bounds, now)

		assert.Zero(t, req.HoursRemaining)
		assert.Zero(t, req.DaysRemaining)
	})

	t.Run("Should clamp needed merges past the goal", func(t *testing.T) {
		t.Parallel()

		now := bounds.Start.Add(24 * time.Hour)
		req := domain.ComputeRequirements(60000, 50000, 500, bounds, now)

		assert.Zero(t, req.MergesNeeded)
	})

	t.Run("Should sanitize a non-finite rate", func(t *testing.T) {
		t.Parallel()

		now := bounds.Start.Add(24 * time.Hour)
		req := domain.ComputeRequirements(1000, 50000, math.NaN(), bounds, now)

		assert.Zero(t, req.HoursRequired, "NaN rate must be treated as zero")
	})
}

func TestComputePace(t *testing.T) {
	t.Parallel()

	weekStart := time.Date(2025, 1, 12, 17, 0, 0, 0, time.UTC)

	t.Run("Should compare achieved against required throughput", func(t *testing.T) {
		t.Parallel()

		now := weekStart.Add(100 * time.Hour)
		pace := domain.ComputePace(40000, 10000, weekStart, 68, now)

		assert.InDelta(t, 400, pace.CurrentPace, 1e-6)
		assert.InDelta(t, 10000.0/68.0, pace.RequiredPace, 1e-6)
		assert.True(t, pace.OnTrack)
	})

	t.Run("Should floor elapsed time at one hour", func(t *testing.T) {
		t.Parallel()

		now := weekStart.Add(5 * time.Minute)
		pace := domain.ComputePace(300, 49700, weekStart, 167, now)

		assert.Equal(t, 1.0, pace.HoursSinceStart)
		assert.Equal(t, 300.0, pace.CurrentPace)
	})

	t.Run("Should report on-track when nothing remains", func(t *testing.T) {
		t.Parallel()

		now := weekStart.Add(100 * time.Hour)
		pace := domain.ComputePace(50000, 0, weekStart, 68, now)

		assert.True(t, pace.OnTrack, "Nothing remaining must count as on-track")
	})
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		current      int
		goal         int
		currentPace  float64
		requiredPace float64
		want         domain.StatusLevel
	}{
		{"goal reached", 50000, 50000, 0, 0, domain.StatusCompleted},
		{"well ahead", 100, 50000, 300, 100, domain.StatusExcellent},
		{"comfortably ahead", 100, 50000, 130, 100, domain.StatusGood},
		{"exactly on pace", 100, 50000, 100, 100, domain.StatusOnTrack},
		{"slightly behind", 100, 50000, 90, 100, domain.StatusClose},
		{"behind", 100, 50000, 70, 100, domain.StatusBehind},
		{"far behind", 100, 50000, 30, 100, domain.StatusCritical},
		{"excellent boundary", 100, 50000, 150, 100, domain.StatusExcellent},
		{"close boundary", 100, 50000, 85, 100, domain.StatusClose},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status := domain.ClassifyStatus(tc.current, tc.goal, tc.currentPace, tc.requiredPace)
			assert.Equal(t, tc.want, status.Level)
		})
	}
}

func TestPredictFinish(t *testing.T) {
	t.Parallel()

	weekEnd := time.Date(2025, 1, 19, 17, 0, 0, 0, time.UTC)
	now := weekEnd.Add(-72 * time.Hour)

	t.Run("Should report completed when nothing remains", func(t *testing.T) {
		t.Parallel()

		forecast := domain.PredictFinish(0, 100, weekEnd, now)

		assert.Equal(t, domain.StatusCompleted, forecast.Level)
		assert.True(t, forecast.OnTime)
	})

	t.Run("Should report no-data at zero pace", func(t *testing.T) {
		t.Parallel()

		forecast := domain.PredictFinish(1000, 0, weekEnd, now)

		assert.Equal(t, domain.StatusNoData, forecast.Level)
		assert.Nil(t, forecast.FinishAt)
	})

	t.Run("Should band early finishes", func(t *testing.T) {
		t.Parallel()

		// 1000 needed at 100/h finishes in 10h, 62h early.
		forecast := domain.PredictFinish(1000, 100, weekEnd, now)
		assert.Equal(t, domain.StatusExcellent, forecast.Level)
		assert.True(t, forecast.OnTime)

		// 6000 needed at 100/h finishes in 60h, 12h early.
		forecast = domain.PredictFinish(6000, 100, weekEnd, now)
		assert.Equal(t, domain.StatusGood, forecast.Level)

		// 7000 needed at 100/h finishes in 70h, 2h early.
		forecast = domain.PredictFinish(7000, 100, weekEnd, now)
		assert.Equal(t, domain.StatusOnTrack, forecast.Level)
	})

	t.Run("Should band late finishes", func(t *testing.T) {
		t.Parallel()

		// 8000 needed at 100/h finishes in 80h, 8h late.
		forecast := domain.PredictFinish(8000, 100, weekEnd, now)
		assert.Equal(t, domain.StatusBehind, forecast.Level)
		assert.False(t, forecast.OnTime)

		// 10000 needed at 100/h finishes in 100h, 28h late.
		forecast = domain.PredictFinish(10000, 100, weekEnd, now)
		assert.Equal(t, domain.StatusCritical, forecast.Level)
	})
}

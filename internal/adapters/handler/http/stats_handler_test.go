package http_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollard/mergepace/internal/core/domain"
)

func TestStatsHandler_GetWeekStatus(t *testing.T) {
	t.Run("Success: dashboard payload for an active week", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 40000}`, "user-1")
		env.do("PUT", "/api/v1/progress/rate", `{"mergeRatePer10Min": 500}`, "user-1")

		w := env.do("GET", "/api/v1/stats/week", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":40000`)
		assert.Contains(t, w.Body.String(), `"weekStartDate":"2025-01-12"`)
		assert.Contains(t, w.Body.String(), `"weekEndDate":"2025-01-19"`)
		assert.Contains(t, w.Body.String(), `"requirements"`)
		assert.Contains(t, w.Body.String(), `"forecast"`)
	})

	t.Run("Success: brand-new user gets a zeroed dashboard", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("GET", "/api/v1/stats/week", "", "fresh-user")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":0`)
		assert.Contains(t, w.Body.String(), `"progressPercent":0`)
	})
}

func TestStatsHandler_GetHistoryStats(t *testing.T) {
	t.Run("Success: empty archive yields no summary", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("GET", "/api/v1/stats/history", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), `"summary"`)
	})

	t.Run("Success: archived weeks are summarized", func(t *testing.T) {
		env := newTestEnv(t)

		weekStart := time.Date(2025, 1, 5, 17, 0, 0, 0, time.UTC)
		state, err := domain.NewProgressState("user-1", domain.NewAnchor(time.Sunday, 17, time.UTC), weekStart)
		require.NoError(t, err)
		state.CurrentMerges = 52000

		record, err := domain.NewWeeklyRecord(state, state.WeekEnd)
		require.NoError(t, err)
		require.NoError(t, env.repo.UpsertWeeklyRecord(context.Background(), "user-1", record))

		w := env.do("GET", "/api/v1/stats/history", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"summary"`)
		assert.Contains(t, w.Body.String(), `"completed":true`)
	})
}

package http_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/lcollard/mergepace/internal/adapters/handler/http"
	"github.com/lcollard/mergepace/internal/adapters/handler/http/middleware"
	"github.com/lcollard/mergepace/internal/adapters/repository"
	"github.com/lcollard/mergepace/internal/core/domain"
	"github.com/lcollard/mergepace/internal/core/services"
)

type noopRecalc struct{}

func (noopRecalc) Enqueue(string) {}

// testEnv wires the handlers against the in-memory store with a pinned clock.
// Authentication is replaced by a middleware that trusts the X-User-ID header.
type testEnv struct {
	router   *gin.Engine
	repo     *repository.InMemoryProgressRepository
	progress *services.ProgressService
	streaks  *services.StreakService
	sync     *services.SyncService
	codes    *memoryCodeStore
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	repo := repository.NewInMemoryProgressRepository()

	progress := services.NewProgressService(repo, domain.NewAnchor(time.Sunday, 17, time.UTC), noopRecalc{})
	progress.Now = func() time.Time { return clock }

	streaks := services.NewStreakService(repo, domain.DefaultStreakConfig())
	streaks.Now = func() time.Time { return clock }

	stats := services.NewStatsService(repo, progress)

	codes := newMemoryCodeStore()
	syncSvc := services.NewSyncService(repo, codes, progress, streaks)
	syncSvc.Now = func() time.Time { return clock }

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(middleware.ContextUserIDKey, id)
		}
		c.Next()
	})

	group := router.Group("/api/v1")
	adapterHTTP.NewProgressHandler(progress).RegisterRoutes(group)
	adapterHTTP.NewStatsHandler(stats).RegisterRoutes(group)
	adapterHTTP.NewStreakHandler(streaks).RegisterRoutes(group)
	adapterHTTP.NewSyncHandler(syncSvc).RegisterRoutes(group)

	return &testEnv{
		router:   router,
		repo:     repo,
		progress: progress,
		streaks:  streaks,
		sync:     syncSvc,
		codes:    codes,
		clock:    clock,
	}
}

func (e *testEnv) do(method, path, body, userID string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestProgressHandler_Get(t *testing.T) {
	t.Run("Success: 200 with a fresh default state", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("GET", "/api/v1/progress", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"targetGoal":50000`)
		assert.Contains(t, w.Body.String(), `"currentMerges":0`)
	})

	t.Run("Fail: 500 when user context is missing", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("GET", "/api/v1/progress", "", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "user context missing")
	})
}

func TestProgressHandler_SetMerges(t *testing.T) {
	t.Run("Success: 200 and total attributed to today", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":1200`)
		assert.Contains(t, w.Body.String(), "Tue Jan 14 2025")
	})

	t.Run("Success: lower total is ignored, not applied", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")
		w := env.do("PUT", "/api/v1/progress/merges", `{"total": 800}`, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":1200`)
	})

	t.Run("Fail: 400 when total is missing", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("PUT", "/api/v1/progress/merges", `{}`, "user-1")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProgressHandler_ForceSetMerges(t *testing.T) {
	t.Run("Success: forced decrease overrides the counter", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")
		w := env.do("PUT", "/api/v1/progress/merges/force", `{"total": 300}`, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":300`)
	})
}

func TestProgressHandler_AddMerges(t *testing.T) {
	t.Run("Success: increments accumulate", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("POST", "/api/v1/progress/merges/add", `{"amount": 100}`, "user-1")
		w := env.do("POST", "/api/v1/progress/merges/add", `{"amount": 50}`, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":150`)
	})
}

func TestProgressHandler_Settings(t *testing.T) {
	t.Run("Success: goal and rate updates round-trip", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("PUT", "/api/v1/progress/goal", `{"targetGoal": 60000}`, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"targetGoal":60000`)

		w = env.do("PUT", "/api/v1/progress/rate", `{"mergeRatePer10Min": 4.5}`, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"mergeRatePer10Min":4.5`)
	})

	t.Run("Success: non-positive goal falls back to the default", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("PUT", "/api/v1/progress/goal", `{"targetGoal": 0}`, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"targetGoal":50000`)
	})
}

func TestProgressHandler_Resets(t *testing.T) {
	t.Run("Success: reset-week clears the counter", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")
		w := env.do("POST", "/api/v1/progress/reset-week", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":0`)
	})

	t.Run("Success: reset-all returns a fresh state", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")
		env.do("PUT", "/api/v1/progress/goal", `{"targetGoal": 60000}`, "user-1")
		w := env.do("POST", "/api/v1/progress/reset-all", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"currentMerges":0`)
		assert.Contains(t, w.Body.String(), `"targetGoal":50000`)
	})
}

func TestProgressHandler_ConsistencyCheck(t *testing.T) {
	t.Run("Success: report for a clean state", func(t *testing.T) {
		env := newTestEnv(t)

		env.do("PUT", "/api/v1/progress/merges", `{"total": 1200}`, "user-1")
		w := env.do("POST", "/api/v1/progress/consistency-check", "", "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"repaired":false`)
	})

	t.Run("Fail: 404 for a user with no state", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do("POST", "/api/v1/progress/consistency-check", "", "ghost")

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "progress state not found")
	})
}

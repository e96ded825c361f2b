package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lcollard/mergepace/internal/adapters/handler/http/middleware"
	"github.com/lcollard/mergepace/internal/core/services"
)

type StatsHandler struct {
	svc *services.StatsService
}

func NewStatsHandler(svc *services.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) RegisterRoutes(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("/week", h.GetWeekStatus)
		stats.GET("/history", h.GetHistoryStats)
	}
}

func (h *StatsHandler) GetWeekStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	status, err := h.svc.GetWeekStatus(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *StatsHandler) GetHistoryStats(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	stats, err := h.svc.GetHistoryStats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

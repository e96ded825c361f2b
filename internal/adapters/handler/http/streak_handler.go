package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lcollard/mergepace/internal/adapters/handler/http/middleware"
	"github.com/lcollard/mergepace/internal/core/domain"
	"github.com/lcollard/mergepace/internal/core/services"
)

type StreakHandler struct {
	svc *services.StreakService
}

func NewStreakHandler(svc *services.StreakService) *StreakHandler {
	return &StreakHandler{svc: svc}
}

func (h *StreakHandler) RegisterRoutes(r *gin.RouterGroup) {
	streaks := r.Group("/streaks")
	{
		streaks.GET("", h.Get)
		streaks.POST("/recalculate", h.Recalculate)
	}
}

func (h *StreakHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	summary, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "progress state not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *StreakHandler) Recalculate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	summary, milestone, err := h.svc.Recalculate(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "progress state not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"milestone": milestone,
	})
}

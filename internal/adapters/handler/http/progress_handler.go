package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lcollard/mergepace/internal/adapters/handler/http/middleware"
	"github.com/lcollard/mergepace/internal/core/domain"
	"github.com/lcollard/mergepace/internal/core/services"
)

type ProgressHandler struct {
	svc *services.ProgressService
}

func NewProgressHandler(svc *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		svc: svc,
	}
}

type setMergesRequest struct {
	Total *int `json:"total" binding:"required"`
}

type addMergesRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

type setRateRequest struct {
	MergeRatePer10Min *float64 `json:"mergeRatePer10Min" binding:"required"`
}

type setGoalRequest struct {
	TargetGoal *int `json:"targetGoal" binding:"required"`
}

func (h *ProgressHandler) RegisterRoutes(router *gin.RouterGroup) {
	progress := router.Group("/progress")
	{
		progress.GET("", h.Get)
		progress.PUT("/merges", h.SetMerges)
		progress.PUT("/merges/force", h.ForceSetMerges)
		progress.POST("/merges/add", h.AddMerges)
		progress.PUT("/rate", h.SetRate)
		progress.PUT("/goal", h.SetGoal)
		progress.POST("/reset-week", h.ResetWeek)
		progress.POST("/reset-all", h.ResetAll)
		progress.POST("/consistency-check", h.ConsistencyCheck)
	}
}

// respondProgressError maps the domain errors shared by every progress
// endpoint. Conflicts surface as 409 so clients retry with fresh state.
func respondProgressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "progress state not found"})
	case errors.Is(err, domain.ErrStateConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "version conflict",
			"message": "Progress was modified elsewhere. Please retry.",
		})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *ProgressHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	state, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) SetMerges(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setMergesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.SetMerges(c.Request.Context(), userID, *req.Total)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) ForceSetMerges(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setMergesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.ForceSetMerges(c.Request.Context(), userID, *req.Total)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) AddMerges(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req addMergesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.AddMerges(c.Request.Context(), userID, *req.Amount)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) SetRate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.SetMergeRate(c.Request.Context(), userID, *req.MergeRatePer10Min)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) SetGoal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req setGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.SetTargetGoal(c.Request.Context(), userID, *req.TargetGoal)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) ResetWeek(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	state, err := h.svc.ResetWeek(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) ResetAll(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	state, err := h.svc.ResetAll(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *ProgressHandler) ConsistencyCheck(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	report, err := h.svc.CheckConsistency(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

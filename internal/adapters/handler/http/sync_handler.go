package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcollard/mergepace/internal/adapters/handler/http/middleware"
	"github.com/lcollard/mergepace/internal/core/domain"
	"github.com/lcollard/mergepace/internal/core/services"
)

type SyncHandler struct {
	svc *services.SyncService
}

func NewSyncHandler(svc *services.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type downloadRequest struct {
	Code string `json:"code" binding:"required"`
}

type uploadResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *SyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	sync := r.Group("/sync")
	{
		sync.GET("/export", h.Export)
		sync.POST("/import", h.Import)
		sync.POST("/upload", h.Upload)
		sync.POST("/download", h.Download)
		sync.GET("/status", h.Status)
		sync.DELETE("/code", h.Clear)
	}
}

func (h *SyncHandler) Export(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	bundle, err := h.svc.Export(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, bundle)
}

func (h *SyncHandler) Import(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var bundle domain.ExportBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.Import(c.Request.Context(), userID, &bundle)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBundle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bundle has no progress data"})
			return
		}
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *SyncHandler) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	code, expiresAt, err := h.svc.Upload(c.Request.Context(), userID)
	if err != nil {
		respondProgressError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		Code:      code,
		ExpiresAt: expiresAt,
	})
}

func (h *SyncHandler) Download(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.svc.Download(c.Request.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSyncCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "sync code not found or expired"})
		case errors.Is(err, services.ErrInvalidSyncCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sync code"})
		case errors.Is(err, domain.ErrEmptyBundle):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bundle has no progress data"})
		default:
			respondProgressError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *SyncHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	status, err := h.svc.Status(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *SyncHandler) Clear(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	if err := h.svc.Clear(c.Request.Context(), userID); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

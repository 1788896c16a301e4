package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/store"
)

// HealthHandler serves the liveness probe at /health, outside the /api
// prefix. Dashboard clients poll it to drive a connected/disconnected
// badge.
type HealthHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(s store.Store, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  s,
		logger: logger.Named("health_handler"),
	}
}

// Health returns basic liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "civicledger",
	})
}

// Ready additionally checks the store.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("store health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  "store connection failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
)

// AnalyticsHandler serves the read-only /analytics endpoints.
type AnalyticsHandler struct {
	engine *analytics.Engine
	logger *zap.Logger
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(engine *analytics.Engine, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		engine: engine,
		logger: logger.Named("analytics_handler"),
	}
}

// Overview returns the aggregate snapshot.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.engine.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("overview computation failed", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

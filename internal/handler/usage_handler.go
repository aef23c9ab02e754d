package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/model"
)

// UsageStore is the read side of LLM call accounting.
// storage.LLMCallRepository satisfies it.
type UsageStore interface {
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) ([]model.CallStats, error)
}

// UsageHandler reports how many LLM calls the service has made.
type UsageHandler struct {
	store  UsageStore
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler. store may be nil when
// accounting is disabled.
func NewUsageHandler(store UsageStore, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{store: store, logger: logger}
}

// Usage returns call totals per prompt and provider.
// Route: GET /usage
func (h *UsageHandler) Usage(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "call accounting is disabled"})
		return
	}

	ctx := c.Request.Context()

	total, err := h.store.Count(ctx)
	if err != nil {
		h.logger.Error("counting llm calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.Error("aggregating llm calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if stats == nil {
		stats = []model.CallStats{}
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"calls": stats,
	})
}

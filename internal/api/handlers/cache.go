package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/queue"
)

// CacheMetrics reports hit rate and store usage.
func (h *Handler) CacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Metrics(c.Request.Context()))
}

// InvalidateTenantCache drops every cached entry in the tenant's namespace.
func (h *Handler) InvalidateTenantCache(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	removed, err := h.cache.InvalidateTenant(c.Request.Context(), tenantID)
	if err != nil {
		var terr *core.TenantResolutionError
		if errors.As(err, &terr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache invalidation failed"})
		return
	}

	h.logger.Info("Tenant cache invalidated",
		zap.String("tenant_id", tenantID),
		zap.Int("keys_removed", removed),
	)
	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "keys_removed": removed})
}

type warmItem struct {
	Name  string              `json:"name" binding:"required"`
	Query *core.SemanticQuery `json:"query" binding:"required"`
}

type warmRequest struct {
	PreAggregations []warmItem `json:"pre_aggregations" binding:"required,min=1,dive"`
}

// TriggerWarmUp enqueues warm jobs for the tenant's pre-aggregations; the
// worker fleet picks them up asynchronously.
func (h *Handler) TriggerWarmUp(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if err := core.ValidateTenantID(tenantID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req warmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pre_aggregations list with name and query required"})
		return
	}

	enqueued := 0
	for _, item := range req.PreAggregations {
		if err := h.queue.Push(c.Request.Context(), queue.NewJob(tenantID, item.Name, item.Query)); err != nil {
			h.logger.Error("Failed to enqueue warm job",
				zap.String("tenant_id", tenantID),
				zap.String("pre_aggregation", item.Name),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, gin.H{"tenant_id": tenantID, "jobs_enqueued": enqueued})
}

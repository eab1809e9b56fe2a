package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantaleap/analytics-gateway/internal/core"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) Ready(c *gin.Context) {
	if err := h.repo.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}
	if err := h.cache.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "cache connection failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// HealthReport tests every enabled tenant connection and returns the
// aggregated report.
func (h *Handler) HealthReport(c *gin.Context) {
	connections, err := h.repo.ListTenantConnections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenant connections"})
		return
	}

	tenantIDs := make([]string, 0, len(connections))
	for _, tc := range connections {
		tenantIDs = append(tenantIDs, tc.TenantID)
	}

	report := h.tester.GenerateHealthReport(c.Request.Context(), tenantIDs)
	c.JSON(http.StatusOK, report)
}

// TestTenantConnection runs a single on-demand connection test.
func (h *Handler) TestTenantConnection(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if err := core.ValidateTenantID(tenantID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.tester.TestTenantConnection(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, result)
}

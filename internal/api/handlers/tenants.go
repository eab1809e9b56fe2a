package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/driver"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

// ListTenantConnections returns every enabled tenant connection. Passwords
// are redacted from the response.
func (h *Handler) ListTenantConnections(c *gin.Context) {
	connections, err := h.repo.ListTenantConnections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenant connections"})
		return
	}

	for _, tc := range connections {
		tc.Params.Password = ""
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections, "count": len(connections)})
}

func (h *Handler) GetTenantConnection(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if err := core.ValidateTenantID(tenantID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tc, err := h.repo.GetTenantConnection(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, store.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tenant connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tenant connection"})
		return
	}

	tc.Params.Password = ""
	c.JSON(http.StatusOK, tc)
}

type upsertConnectionRequest struct {
	Engine  driver.Kind             `json:"engine" binding:"required"`
	Params  driver.ConnectionParams `json:"params"`
	Enabled *bool                   `json:"enabled"`
}

func (h *Handler) UpsertTenantConnection(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if err := core.ValidateTenantID(tenantID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req upsertConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection payload: " + err.Error()})
		return
	}
	if !driver.IsSupported(req.Engine) {
		c.JSON(http.StatusBadRequest, gin.H{"error": (&driver.UnsupportedEngineError{Kind: req.Engine}).Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	tc := &store.TenantConnection{
		TenantID: tenantID,
		Engine:   req.Engine,
		Params:   req.Params,
		Enabled:  enabled,
	}
	if err := h.repo.UpsertTenantConnection(c.Request.Context(), tc); err != nil {
		h.logger.Error("Failed to upsert tenant connection",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tenant connection"})
		return
	}

	tc.Params.Password = ""
	c.JSON(http.StatusOK, tc)
}

func (h *Handler) DeleteTenantConnection(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if err := core.ValidateTenantID(tenantID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.DeleteTenantConnection(c.Request.Context(), tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tenant connection"})
		return
	}

	// Configuration changed; cached results for the old connection are stale
	if _, err := h.cache.InvalidateTenant(c.Request.Context(), tenantID); err != nil {
		h.logger.Warn("Cache invalidation after connection delete failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "deleted": true})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/api/middleware"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/query"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

// Query executes one semantic query scoped to the caller's tenant.
func (h *Handler) Query(c *gin.Context) {
	sc := middleware.SecurityContextFrom(c)
	if sc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing security context"})
		return
	}

	var q core.SemanticQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query payload: " + err.Error()})
		return
	}

	result, err := h.queries.Execute(c.Request.Context(), sc, &q)
	if err != nil {
		h.renderQueryError(c, sc.TenantID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) renderQueryError(c *gin.Context, tenantID string, err error) {
	var terr *core.TenantResolutionError
	switch {
	case errors.As(err, &terr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, query.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded, retry later"})
	case errors.Is(err, store.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No database connection configured for tenant"})
	default:
		h.logger.Error("Query execution failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Query execution failed"})
	}
}

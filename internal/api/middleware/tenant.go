package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/quantaleap/analytics-gateway/internal/core"
)

const securityContextKey = "security_context"

// Tenant builds the request's security context from the verified claims. A
// token without a well-formed tenant id is rejected here, before any handler
// can run an unscoped query.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Claims not found"})
			c.Abort()
			return
		}

		jwtClaims := claims.(jwt.MapClaims)

		tenantID, ok := jwtClaims["tenant_id"].(string)
		if !ok || tenantID == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Tenant not found in token"})
			c.Abort()
			return
		}
		if err := core.ValidateTenantID(tenantID); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		sc := &core.SecurityContext{
			TenantID:        tenantID,
			Roles:           stringClaims(jwtClaims, "roles"),
			Permissions:     stringClaims(jwtClaims, "permissions"),
			IsAuthenticated: true,
		}

		c.Set(securityContextKey, sc)
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// SecurityContextFrom returns the security context attached by Tenant, or nil
// when the route skipped the middleware.
func SecurityContextFrom(c *gin.Context) *core.SecurityContext {
	v, exists := c.Get(securityContextKey)
	if !exists {
		return nil
	}
	sc, ok := v.(*core.SecurityContext)
	if !ok {
		return nil
	}
	return sc
}

func stringClaims(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/api/handlers"
	"github.com/quantaleap/analytics-gateway/internal/api/middleware"
	"github.com/quantaleap/analytics-gateway/internal/config"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	Handler *handlers.Handler
}

func NewServer(cfg *config.Config, handler *handlers.Handler, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		Handler: handler,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := s.Handler

	// Operational endpoints, unauthenticated
	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Tenant-facing API (protected)
	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret))
	api.Use(middleware.Tenant())
	{
		api.POST("/query", h.Query)
		api.GET("/health/report", h.HealthReport)
	}

	// Admin API (protected)
	admin := s.Router.Group("/api/v1/admin")
	admin.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret))
	admin.Use(middleware.Tenant())
	{
		admin.GET("/cache/metrics", h.CacheMetrics)
		admin.DELETE("/cache/tenants/:tenant_id", h.InvalidateTenantCache)
		admin.POST("/cache/tenants/:tenant_id/warm", h.TriggerWarmUp)

		admin.GET("/tenants", h.ListTenantConnections)
		admin.GET("/tenants/:tenant_id/connection", h.GetTenantConnection)
		admin.PUT("/tenants/:tenant_id/connection", h.UpsertTenantConnection)
		admin.DELETE("/tenants/:tenant_id/connection", h.DeleteTenantConnection)
		admin.POST("/tenants/:tenant_id/test", h.TestTenantConnection)
	}
}

// Package handlers holds the gin handlers for the gateway's HTTP surface.
package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/cache"
	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/health"
	"github.com/quantaleap/analytics-gateway/internal/query"
	"github.com/quantaleap/analytics-gateway/internal/queue"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

// ConnectionStore is the slice of the repository the handlers need.
// Implemented by *store.Repository.
type ConnectionStore interface {
	Ping() error
	GetTenantConnection(ctx context.Context, tenantID string) (*store.TenantConnection, error)
	ListTenantConnections(ctx context.Context) ([]*store.TenantConnection, error)
	UpsertTenantConnection(ctx context.Context, tc *store.TenantConnection) error
	DeleteTenantConnection(ctx context.Context, tenantID string) error
}

type Handler struct {
	queries *query.Service
	cache   *cache.Manager
	tester  *health.Tester
	repo    ConnectionStore
	queue   *queue.RedisQueue
	logger  *zap.Logger
	cfg     *config.Config
}

func New(queries *query.Service, cacheMgr *cache.Manager, tester *health.Tester, repo ConnectionStore, jobQueue *queue.RedisQueue, logger *zap.Logger, cfg *config.Config) *Handler {
	return &Handler{
		queries: queries,
		cache:   cacheMgr,
		tester:  tester,
		repo:    repo,
		queue:   jobQueue,
		logger:  logger,
		cfg:     cfg,
	}
}

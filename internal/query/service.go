// Package query is the request path: rewrite a semantic query for tenant
// isolation, serve it from cache when possible, otherwise compile it through
// the external engine and execute it on the tenant's database.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantaleap/analytics-gateway/internal/cache"
	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/driver"
	"github.com/quantaleap/analytics-gateway/internal/metrics"
	"github.com/quantaleap/analytics-gateway/internal/rewriter"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

// ErrRateLimited is returned when a tenant exceeds its request budget.
var ErrRateLimited = errors.New("query: tenant rate limit exceeded")

// Compiler turns a rewritten semantic query into engine SQL. Implemented by
// *engine.Client in production.
type Compiler interface {
	Compile(ctx context.Context, q *core.SemanticQuery, routing *rewriter.Routing) (string, error)
}

// ConfigSource resolves the tenant's physical connection.
type ConfigSource interface {
	GetTenantConnection(ctx context.Context, tenantID string) (*store.TenantConnection, error)
}

// FactoryFunc matches driver.New and is injectable for tests.
type FactoryFunc func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error)

// QueryResult is the gateway's answer to one semantic query.
type QueryResult struct {
	Query     *core.SemanticQuery `json:"query"`
	Data      *driver.Rows        `json:"data"`
	FromCache bool                `json:"from_cache"`
	Engine    string              `json:"engine"`
	TookMs    float64             `json:"took_ms"`
}

type Service struct {
	configs  ConfigSource
	compiler Compiler
	cacheMgr *cache.Manager
	factory  FactoryFunc
	logger   *zap.Logger
	cfg      *config.Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewService(configs ConfigSource, compiler Compiler, cacheMgr *cache.Manager, logger *zap.Logger, cfg *config.Config) *Service {
	return &Service{
		configs:  configs,
		compiler: compiler,
		cacheMgr: cacheMgr,
		factory:  driver.New,
		logger:   logger,
		cfg:      cfg,
		limiters: map[string]*rate.Limiter{},
	}
}

func (s *Service) limiter(tenantID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.PerTenantRPS), s.cfg.RateLimit.Burst)
		s.limiters[tenantID] = lim
	}
	return lim
}

// Execute runs one semantic query for the caller's tenant. The query is
// rewritten before anything else touches it; the cache key is derived from
// the rewritten form so two tenants issuing the same query never share an
// entry.
func (s *Service) Execute(ctx context.Context, sc *core.SecurityContext, q *core.SemanticQuery) (*QueryResult, error) {
	start := time.Now()

	rewritten, err := rewriter.Rewrite(q, sc)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if !s.limiter(sc.TenantID).Allow() {
		metrics.QueriesTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	key, err := s.cacheMgr.QueryCacheKey(sc.TenantID, rewritten)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if s.cfg.Cache.QueryCache.Enabled {
		var rows driver.Rows
		if found, err := s.cacheMgr.Get(ctx, key, &rows); err == nil && found {
			metrics.QueriesTotal.WithLabelValues("success").Inc()
			metrics.QueryDuration.WithLabelValues("cache", "true").Observe(time.Since(start).Seconds())
			return &QueryResult{
				Query:     rewritten,
				Data:      &rows,
				FromCache: true,
				Engine:    "cache",
				TookMs:    float64(time.Since(start).Milliseconds()),
			}, nil
		}
	}

	result, err := s.executeOrigin(ctx, sc, rewritten)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if s.cfg.Cache.QueryCache.Enabled {
		if err := s.cacheMgr.Set(ctx, key, result.Data, s.cfg.Cache.QueryCache.TTL); err != nil {
			s.logger.Warn("Failed to cache query result",
				zap.String("tenant_id", sc.TenantID),
				zap.Error(err),
			)
		}
	}

	result.TookMs = float64(time.Since(start).Milliseconds())
	metrics.QueriesTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues(result.Engine, "false").Observe(time.Since(start).Seconds())
	return result, nil
}

func (s *Service) executeOrigin(ctx context.Context, sc *core.SecurityContext, rewritten *core.SemanticQuery) (*QueryResult, error) {
	routing, err := rewriter.ResolveRouting(sc)
	if err != nil {
		return nil, err
	}

	tc, err := s.configs.GetTenantConnection(ctx, sc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("no connection configured for tenant %s: %w", sc.TenantID, err)
	}

	sql, err := s.compiler.Compile(ctx, rewritten, routing)
	if err != nil {
		return nil, fmt.Errorf("query compilation failed: %w", err)
	}

	drv, err := s.factory(tc.Engine, tc.Params)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	if err := drv.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to tenant database: %w", err)
	}

	rows, err := drv.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	s.logger.Debug("Query executed",
		zap.String("tenant_id", sc.TenantID),
		zap.String("engine", string(tc.Engine)),
		zap.Int("row_count", len(rows.Values)),
	)

	return &QueryResult{
		Query:  rewritten,
		Data:   rows,
		Engine: string(tc.Engine),
	}, nil
}

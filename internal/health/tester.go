// Package health exercises tenant database connections through the driver
// factory and aggregates the outcomes into operational health reports.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/driver"
	"github.com/quantaleap/analytics-gateway/internal/metrics"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

// ConfigSource resolves tenant connection configuration. Implemented by
// *store.Repository in production and by fakes in tests.
type ConfigSource interface {
	GetTenantConnection(ctx context.Context, tenantID string) (*store.TenantConnection, error)
	ListTenantConnections(ctx context.Context) ([]*store.TenantConnection, error)
}

// FactoryFunc matches driver.New and is injectable for tests.
type FactoryFunc func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error)

type Tester struct {
	configs ConfigSource
	factory FactoryFunc
	logger  *zap.Logger
	cfg     config.MonitoringConfig
}

func NewTester(configs ConfigSource, logger *zap.Logger, cfg config.MonitoringConfig) *Tester {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Tester{
		configs: configs,
		factory: driver.New,
		logger:  logger,
		cfg:     cfg,
	}
}

// TestTenantConnection resolves the tenant's configured driver, exercises
// it, and reports the outcome as data. Response time covers the whole test
// including metadata extraction. Failures never panic or propagate; they are
// captured in the result.
func (t *Tester) TestTenantConnection(ctx context.Context, tenantID string) *core.ConnectionTestResult {
	start := time.Now()

	tc, err := t.configs.GetTenantConnection(ctx, tenantID)
	if err != nil {
		return t.failed(tenantID, "", start, fmt.Errorf("no connection configured: %w", err))
	}
	return t.testConnection(ctx, tc, start)
}

func (t *Tester) testConnection(ctx context.Context, tc *store.TenantConnection, start time.Time) *core.ConnectionTestResult {
	engine := string(tc.Engine)

	if !driver.IsSupported(tc.Engine) {
		return t.failed(tc.TenantID, engine, start, &driver.UnsupportedEngineError{Kind: tc.Engine})
	}

	drv, err := t.factory(tc.Engine, tc.Params)
	if err != nil {
		return t.failed(tc.TenantID, engine, start, err)
	}
	defer drv.Close()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.QueryTimeout)
	defer cancel()

	if err := drv.Connect(ctx); err != nil {
		return t.failed(tc.TenantID, engine, start, err)
	}
	if err := drv.TestConnection(ctx); err != nil {
		return t.failed(tc.TenantID, engine, start, err)
	}

	metadata := t.extractMetadata(ctx, drv)

	result := &core.ConnectionTestResult{
		TenantID:     tc.TenantID,
		DatabaseType: engine,
		Success:      true,
		ResponseTime: float64(time.Since(start).Milliseconds()),
		Metadata:     metadata,
		CheckedAt:    start,
	}
	metrics.ConnectionTestsTotal.WithLabelValues("success").Inc()
	metrics.TenantHealthy.WithLabelValues(tc.TenantID).Set(1)
	return result
}

func (t *Tester) failed(tenantID, engine string, start time.Time, err error) *core.ConnectionTestResult {
	t.logger.Warn("Tenant connection test failed",
		zap.String("tenant_id", tenantID),
		zap.String("database_type", engine),
		zap.Error(err),
	)
	metrics.ConnectionTestsTotal.WithLabelValues("failure").Inc()
	metrics.TenantHealthy.WithLabelValues(tenantID).Set(0)
	return &core.ConnectionTestResult{
		TenantID:     tenantID,
		DatabaseType: engine,
		Success:      false,
		ResponseTime: float64(time.Since(start).Milliseconds()),
		Error:        err.Error(),
		CheckedAt:    start,
	}
}

// extractMetadata probes engine version, current schema and table count.
// Every probe is best-effort: a failing probe leaves the degraded default in
// place and never fails the surrounding test.
func (t *Tester) extractMetadata(ctx context.Context, drv driver.Driver) *core.ConnectionMetadata {
	metadata := core.UnknownMetadata()

	if version, ok := t.scalarProbe(ctx, drv, driver.VersionQuery(drv.Kind())); ok {
		metadata.Version = version
	}
	if schema, ok := t.scalarProbe(ctx, drv, driver.SchemaQuery(drv.Kind())); ok {
		metadata.Schema = schema
	}
	if count, ok := t.scalarProbe(ctx, drv, driver.TableCountQuery(drv.Kind())); ok {
		var n int
		if _, err := fmt.Sscanf(count, "%d", &n); err == nil {
			metadata.TableCount = n
		}
	}
	return metadata
}

func (t *Tester) scalarProbe(ctx context.Context, drv driver.Driver, query string) (string, bool) {
	if query == "" {
		return "", false
	}
	rows, err := drv.Query(ctx, query)
	if err != nil || len(rows.Values) == 0 || len(rows.Values[0]) == 0 {
		return "", false
	}
	val := rows.Values[0][0]
	if val == nil {
		return "", false
	}
	switch v := val.(type) {
	case []byte:
		return string(v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// TestMultipleConnections fans the supplied configs out over a bounded
// worker pool. One tenant's failure, even a panic, is isolated into its
// own result and never aborts the batch. Result order is unspecified.
func (t *Tester) TestMultipleConnections(ctx context.Context, configs []*store.TenantConnection) []*core.ConnectionTestResult {
	jobs := make(chan *store.TenantConnection, len(configs))
	results := make([]*core.ConnectionTestResult, 0, len(configs))

	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := t.cfg.Workers
	if workers > len(configs) {
		workers = len(configs)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tc := range jobs {
				result := t.safeTest(ctx, tc)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	for _, tc := range configs {
		jobs <- tc
	}
	close(jobs)
	wg.Wait()

	return results
}

func (t *Tester) safeTest(ctx context.Context, tc *store.TenantConnection) (result *core.ConnectionTestResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Connection test panicked",
				zap.String("tenant_id", tc.TenantID),
				zap.Any("panic", r),
			)
			result = t.failed(tc.TenantID, string(tc.Engine), start, fmt.Errorf("connection test panicked: %v", r))
		}
	}()
	return t.testConnection(ctx, tc, start)
}

// GenerateHealthReport tests every tenant id and classifies the batch:
// healthy with zero failures, unhealthy when failures exceed half the batch,
// degraded in between.
func (t *Tester) GenerateHealthReport(ctx context.Context, tenantIDs []string) *core.HealthReport {
	configs := make([]*store.TenantConnection, 0, len(tenantIDs))
	results := make([]*core.ConnectionTestResult, 0, len(tenantIDs))

	for _, id := range tenantIDs {
		tc, err := t.configs.GetTenantConnection(ctx, id)
		if err != nil {
			results = append(results, t.failed(id, "", time.Now(), fmt.Errorf("no connection configured: %w", err)))
			continue
		}
		configs = append(configs, tc)
	}
	results = append(results, t.TestMultipleConnections(ctx, configs)...)

	healthy := 0
	for _, r := range results {
		if r.Success {
			healthy++
		}
	}
	total := len(results)
	failed := total - healthy

	overall := core.StatusHealthy
	switch {
	case failed == 0:
		overall = core.StatusHealthy
	case failed*2 > total:
		overall = core.StatusUnhealthy
	default:
		overall = core.StatusDegraded
	}

	return &core.HealthReport{
		Overall:          overall,
		TotalTenants:     total,
		HealthyTenants:   healthy,
		UnhealthyTenants: failed,
		Results:          results,
		Recommendations:  t.recommendations(results, failed),
		GeneratedAt:      time.Now(),
	}
}

func (t *Tester) recommendations(results []*core.ConnectionTestResult, failed int) []string {
	recs := []string{}

	if failed > 0 {
		names := []string{}
		for _, r := range results {
			if !r.Success {
				names = append(names, r.TenantID)
			}
		}
		recs = append(recs, fmt.Sprintf("%d tenant connection(s) failing: %s; check connectivity and credentials",
			failed, strings.Join(names, ", ")))
	}

	slowMs := float64(t.cfg.SlowThreshold.Milliseconds())
	var sum float64
	successes := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		successes++
		sum += r.ResponseTime
		if r.ResponseTime > slowMs {
			recs = append(recs, fmt.Sprintf("tenant %s responded in %.0fms, above the %.0fms slow threshold",
				r.TenantID, r.ResponseTime, slowMs))
		}
	}
	if successes > 0 {
		avgMs := float64(t.cfg.AvgThreshold.Milliseconds())
		if avg := sum / float64(successes); avg > avgMs {
			recs = append(recs, fmt.Sprintf("average response time %.0fms exceeds the %.0fms target; consider connection pooling or pre-aggregations",
				avg, avgMs))
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "All tenant connections healthy")
	}
	return recs
}

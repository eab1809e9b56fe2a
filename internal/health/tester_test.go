package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/driver"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

type fakeConfigSource struct {
	connections map[string]*store.TenantConnection
}

func (f *fakeConfigSource) GetTenantConnection(_ context.Context, tenantID string) (*store.TenantConnection, error) {
	tc, ok := f.connections[tenantID]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return tc, nil
}

func (f *fakeConfigSource) ListTenantConnections(_ context.Context) ([]*store.TenantConnection, error) {
	out := []*store.TenantConnection{}
	for _, tc := range f.connections {
		out = append(out, tc)
	}
	return out, nil
}

type fakeDriver struct {
	kind       driver.Kind
	connectErr error
	testErr    error
	queryErr   error
	delay      time.Duration
	results    map[string]*driver.Rows
}

func (d *fakeDriver) Connect(context.Context) error { return d.connectErr }

func (d *fakeDriver) TestConnection(context.Context) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.testErr
}

func (d *fakeDriver) Query(_ context.Context, sql string) (*driver.Rows, error) {
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if rows, ok := d.results[sql]; ok {
		return rows, nil
	}
	return &driver.Rows{Columns: []string{"v"}, Values: [][]interface{}{}}, nil
}

func (d *fakeDriver) Close() error      { return nil }
func (d *fakeDriver) Kind() driver.Kind { return d.kind }

func scalar(v interface{}) *driver.Rows {
	return &driver.Rows{Columns: []string{"v"}, Values: [][]interface{}{{v}}}
}

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		Interval:      time.Minute,
		SlowThreshold: 5 * time.Second,
		AvgThreshold:  2 * time.Second,
		Workers:       3,
		QueryTimeout:  5 * time.Second,
	}
}

func postgresConnection(tenantID string) *store.TenantConnection {
	return &store.TenantConnection{
		TenantID: tenantID,
		Engine:   driver.KindPostgres,
		Params:   driver.ConnectionParams{Host: "localhost", Database: "analytics", User: "gateway"},
		Enabled:  true,
	}
}

func newFakeTester(t *testing.T, configs *fakeConfigSource, factory FactoryFunc) *Tester {
	t.Helper()
	tester := NewTester(configs, zaptest.NewLogger(t), testMonitoringConfig())
	tester.factory = factory
	return tester
}

func healthyFactory(kind driver.Kind, _ driver.ConnectionParams) (driver.Driver, error) {
	return &fakeDriver{
		kind: kind,
		results: map[string]*driver.Rows{
			driver.VersionQuery(kind):    scalar("PostgreSQL 16.2"),
			driver.SchemaQuery(kind):     scalar("public"),
			driver.TableCountQuery(kind): scalar(int64(12)),
		},
	}, nil
}

func TestTestTenantConnection_Success(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	result := tester.TestTenantConnection(context.Background(), "acme-1")

	assert.True(t, result.Success)
	assert.Equal(t, "acme-1", result.TenantID)
	assert.Equal(t, "postgres", result.DatabaseType)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "PostgreSQL 16.2", result.Metadata.Version)
	assert.Equal(t, "public", result.Metadata.Schema)
	assert.Equal(t, 12, result.Metadata.TableCount)
	assert.GreaterOrEqual(t, result.ResponseTime, float64(0))
}

func TestTestTenantConnection_MetadataFailureIsNonFatal(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, func(kind driver.Kind, _ driver.ConnectionParams) (driver.Driver, error) {
		return &fakeDriver{kind: kind, queryErr: errors.New("permission denied")}, nil
	})

	result := tester.TestTenantConnection(context.Background(), "acme-1")

	assert.True(t, result.Success, "metadata extraction failure must not fail the test")
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "Unknown", result.Metadata.Version)
	assert.Equal(t, "Unknown", result.Metadata.Schema)
	assert.Equal(t, 0, result.Metadata.TableCount)
}

func TestTestTenantConnection_Failure(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, func(kind driver.Kind, _ driver.ConnectionParams) (driver.Driver, error) {
		return &fakeDriver{kind: kind, connectErr: errors.New("connection refused")}, nil
	})

	result := tester.TestTenantConnection(context.Background(), "acme-1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
}

func TestTestTenantConnection_UnknownTenant(t *testing.T) {
	tester := newFakeTester(t, &fakeConfigSource{connections: map[string]*store.TenantConnection{}}, healthyFactory)

	result := tester.TestTenantConnection(context.Background(), "ghost-tenant")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no connection configured")
}

func TestTestMultipleConnections_FailureIsolation(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{}}
	tester := newFakeTester(t, configs, func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error) {
		if params.Database == "broken" {
			return nil, errors.New("bad credentials")
		}
		return &fakeDriver{kind: kind}, nil
	})

	batch := []*store.TenantConnection{
		postgresConnection("tenant-a"),
		{TenantID: "tenant-b", Engine: driver.KindPostgres, Params: driver.ConnectionParams{Host: "h", Database: "broken", User: "u"}},
		postgresConnection("tenant-c"),
	}

	results := tester.TestMultipleConnections(context.Background(), batch)
	require.Len(t, results, 3)

	byTenant := map[string]*core.ConnectionTestResult{}
	for _, r := range results {
		byTenant[r.TenantID] = r
	}
	assert.True(t, byTenant["tenant-a"].Success)
	assert.False(t, byTenant["tenant-b"].Success)
	assert.True(t, byTenant["tenant-c"].Success)
}

func TestTestMultipleConnections_PanicIsolation(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{}}
	tester := newFakeTester(t, configs, func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error) {
		if params.Database == "explosive" {
			panic("driver constructor exploded")
		}
		return &fakeDriver{kind: kind}, nil
	})

	batch := []*store.TenantConnection{
		postgresConnection("tenant-a"),
		{TenantID: "tenant-boom", Engine: driver.KindPostgres, Params: driver.ConnectionParams{Host: "h", Database: "explosive", User: "u"}},
	}

	results := tester.TestMultipleConnections(context.Background(), batch)
	require.Len(t, results, 2)

	for _, r := range results {
		if r.TenantID == "tenant-boom" {
			assert.False(t, r.Success)
			assert.Contains(t, r.Error, "panicked")
		} else {
			assert.True(t, r.Success)
		}
	}
}

func TestTestConnection_UnsupportedEngine(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": {TenantID: "acme-1", Engine: driver.Kind("oracle")},
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	result := tester.TestTenantConnection(context.Background(), "acme-1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported database engine")
}

func reportFixture(t *testing.T, failing map[string]bool, tenants ...string) *core.HealthReport {
	t.Helper()

	connections := map[string]*store.TenantConnection{}
	for _, id := range tenants {
		connections[id] = postgresConnection(id)
		if failing[id] {
			connections[id].Params.Database = "fail"
		}
	}
	tester := newFakeTester(t, &fakeConfigSource{connections: connections},
		func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error) {
			if params.Database == "fail" {
				return &fakeDriver{kind: kind, testErr: fmt.Errorf("timeout")}, nil
			}
			return &fakeDriver{kind: kind}, nil
		})

	return tester.GenerateHealthReport(context.Background(), tenants)
}

func TestGenerateHealthReport_Classification(t *testing.T) {
	tenants := []string{"t-one", "t-two", "t-three", "t-four"}

	t.Run("zero failures is healthy", func(t *testing.T) {
		report := reportFixture(t, nil, tenants...)
		assert.Equal(t, core.StatusHealthy, report.Overall)
		assert.Equal(t, 4, report.TotalTenants)
		assert.Equal(t, 4, report.HealthyTenants)
		assert.Equal(t, 0, report.UnhealthyTenants)
		assert.Equal(t, []string{"All tenant connections healthy"}, report.Recommendations)
	})

	t.Run("half failing is degraded", func(t *testing.T) {
		report := reportFixture(t, map[string]bool{"t-one": true, "t-two": true}, tenants...)
		assert.Equal(t, core.StatusDegraded, report.Overall)
		assert.Equal(t, 2, report.UnhealthyTenants)
	})

	t.Run("majority failing is unhealthy", func(t *testing.T) {
		report := reportFixture(t, map[string]bool{"t-one": true, "t-two": true, "t-three": true}, tenants...)
		assert.Equal(t, core.StatusUnhealthy, report.Overall)
		assert.Equal(t, 3, report.UnhealthyTenants)
	})
}

func TestGenerateHealthReport_FailureRecommendation(t *testing.T) {
	report := reportFixture(t, map[string]bool{"t-two": true}, "t-one", "t-two")

	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "t-two")
	assert.Contains(t, report.Recommendations[0], "1 tenant connection(s) failing")
}

func hasRecommendation(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestGenerateHealthReport_SlowTenantRecommendation(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.SlowThreshold = 30 * time.Millisecond
	cfg.AvgThreshold = time.Minute // keep the average rule quiet

	connections := map[string]*store.TenantConnection{
		"t-fast": postgresConnection("t-fast"),
		"t-slow": postgresConnection("t-slow"),
	}
	connections["t-slow"].Params.Database = "sluggish"

	tester := NewTester(&fakeConfigSource{connections: connections}, zaptest.NewLogger(t), cfg)
	tester.factory = func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error) {
		d := &fakeDriver{kind: kind}
		if params.Database == "sluggish" {
			d.delay = 80 * time.Millisecond
		}
		return d, nil
	}

	report := tester.GenerateHealthReport(context.Background(), []string{"t-fast", "t-slow"})

	assert.Equal(t, core.StatusHealthy, report.Overall)
	require.True(t, hasRecommendation(report.Recommendations, "slow threshold"))
	assert.True(t, hasRecommendation(report.Recommendations, "t-slow"))
	assert.False(t, hasRecommendation(report.Recommendations, "t-fast"))
}

func TestGenerateHealthReport_AverageResponseTimeRecommendation(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.SlowThreshold = time.Minute // keep the per-tenant rule quiet
	cfg.AvgThreshold = 10 * time.Millisecond

	connections := map[string]*store.TenantConnection{
		"t-one": postgresConnection("t-one"),
		"t-two": postgresConnection("t-two"),
	}

	tester := NewTester(&fakeConfigSource{connections: connections}, zaptest.NewLogger(t), cfg)
	tester.factory = func(kind driver.Kind, _ driver.ConnectionParams) (driver.Driver, error) {
		return &fakeDriver{kind: kind, delay: 40 * time.Millisecond}, nil
	}

	report := tester.GenerateHealthReport(context.Background(), []string{"t-one", "t-two"})

	assert.Equal(t, core.StatusHealthy, report.Overall)
	require.True(t, hasRecommendation(report.Recommendations, "average response time"))
	assert.True(t, hasRecommendation(report.Recommendations, "connection pooling"))
	assert.False(t, hasRecommendation(report.Recommendations, "slow threshold"))
}

func TestGenerateHealthReport_CoversMissingConfig(t *testing.T) {
	connections := map[string]*store.TenantConnection{"t-one": postgresConnection("t-one")}
	tester := newFakeTester(t, &fakeConfigSource{connections: connections}, healthyFactory)

	report := tester.GenerateHealthReport(context.Background(), []string{"t-one", "t-missing"})

	assert.Equal(t, 2, report.TotalTenants)
	assert.Equal(t, 1, report.UnhealthyTenants)
	assert.Equal(t, core.StatusDegraded, report.Overall)
}

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/driver"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

func collectBatches(t *testing.T, batches <-chan []*core.ConnectionTestResult, n int, timeout time.Duration) [][]*core.ConnectionTestResult {
	t.Helper()
	out := [][]*core.ConnectionTestResult{}
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case b := <-batches:
			out = append(out, b)
		case <-deadline:
			t.Fatalf("expected %d monitoring batches, got %d", n, len(out))
		}
	}
	return out
}

func TestStartMonitoring_RunsImmediatelyAndOnInterval(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	batches := make(chan []*core.ConnectionTestResult, 16)
	handle := tester.StartMonitoring(context.Background(), []string{"acme-1"}, 20*time.Millisecond,
		func(results []*core.ConnectionTestResult) {
			batches <- results
		})
	defer handle.Stop()

	got := collectBatches(t, batches, 3, 5*time.Second)
	for _, batch := range got {
		require.Len(t, batch, 1)
		assert.Equal(t, "acme-1", batch[0].TenantID)
		assert.True(t, batch[0].Success)
	}
}

func TestStartMonitoring_SurvivesPanickingTest(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"tenant-ok":   postgresConnection("tenant-ok"),
		"tenant-boom": postgresConnection("tenant-boom"),
	}}
	configs.connections["tenant-boom"].Params.Database = "explosive"

	tester := newFakeTester(t, configs, func(kind driver.Kind, params driver.ConnectionParams) (driver.Driver, error) {
		if params.Database == "explosive" {
			panic("driver constructor exploded")
		}
		return &fakeDriver{kind: kind}, nil
	})

	batches := make(chan []*core.ConnectionTestResult, 16)
	handle := tester.StartMonitoring(context.Background(), []string{"tenant-ok", "tenant-boom"}, 20*time.Millisecond,
		func(results []*core.ConnectionTestResult) {
			batches <- results
		})
	defer handle.Stop()

	// The loop must keep producing full batches despite the panic
	got := collectBatches(t, batches, 2, 5*time.Second)
	for _, batch := range got {
		require.Len(t, batch, 2)
		byTenant := map[string]*core.ConnectionTestResult{}
		for _, r := range batch {
			byTenant[r.TenantID] = r
		}
		assert.True(t, byTenant["tenant-ok"].Success)
		assert.False(t, byTenant["tenant-boom"].Success)
		assert.Contains(t, byTenant["tenant-boom"].Error, "panicked")
	}
}

func TestStartMonitoringAll_TestsEveryConfiguredTenant(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
		"beta-2": postgresConnection("beta-2"),
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	batches := make(chan []*core.ConnectionTestResult, 16)
	handle := tester.StartMonitoringAll(context.Background(), 20*time.Millisecond,
		func(results []*core.ConnectionTestResult) {
			batches <- results
		})
	defer handle.Stop()

	got := collectBatches(t, batches, 2, 5*time.Second)
	for _, batch := range got {
		require.Len(t, batch, 2)
		seen := map[string]bool{}
		for _, r := range batch {
			seen[r.TenantID] = true
			assert.True(t, r.Success)
		}
		assert.True(t, seen["acme-1"])
		assert.True(t, seen["beta-2"])
	}
}

func TestMonitorHandle_Stop(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	batches := make(chan []*core.ConnectionTestResult, 16)
	handle := tester.StartMonitoring(context.Background(), []string{"acme-1"}, 10*time.Millisecond,
		func(results []*core.ConnectionTestResult) {
			select {
			case batches <- results:
			default:
			}
		})

	collectBatches(t, batches, 1, 5*time.Second)
	handle.Stop()
	handle.Stop() // idempotent

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitoring loop did not exit after Stop")
	}
}

func TestStartMonitoring_ContextCancellation(t *testing.T) {
	configs := &fakeConfigSource{connections: map[string]*store.TenantConnection{
		"acme-1": postgresConnection("acme-1"),
	}}
	tester := newFakeTester(t, configs, healthyFactory)

	ctx, cancel := context.WithCancel(context.Background())
	handle := tester.StartMonitoring(ctx, []string{"acme-1"}, time.Hour, func([]*core.ConnectionTestResult) {})

	cancel()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitoring loop did not exit after context cancellation")
	}
}

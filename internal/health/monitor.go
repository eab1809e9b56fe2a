package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/metrics"
)

// MonitorHandle cancels a running monitoring loop. Stop prevents further
// cycles; an in-flight cycle is allowed to finish naturally.
type MonitorHandle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (h *MonitorHandle) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Done is closed once the loop has fully exited.
func (h *MonitorHandle) Done() <-chan struct{} {
	return h.done
}

// StartMonitoring runs an immediate check of all tenant ids, then re-runs on
// the interval, invoking cb with each batch of results. A cycle that errors
// or panics is logged and the loop proceeds to the next tick.
func (t *Tester) StartMonitoring(ctx context.Context, tenantIDs []string, interval time.Duration, cb func([]*core.ConnectionTestResult)) *MonitorHandle {
	handle := &MonitorHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(handle.done)

		t.logger.Info("Starting connection monitoring",
			zap.Int("tenant_count", len(tenantIDs)),
			zap.Duration("interval", interval),
		)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		t.runCycle(ctx, tenantIDs, cb)

		for {
			select {
			case <-ctx.Done():
				t.logger.Info("Stopping connection monitoring", zap.String("reason", "context cancelled"))
				return
			case <-handle.stop:
				t.logger.Info("Stopping connection monitoring", zap.String("reason", "handle stopped"))
				return
			case <-ticker.C:
				t.runCycle(ctx, tenantIDs, cb)
			}
		}
	}()

	return handle
}

// StartMonitoringAll is StartMonitoring over whatever tenants are currently
// configured: the tenant list is re-resolved from the config source at the
// start of every cycle, so newly onboarded tenants are picked up without a
// restart.
func (t *Tester) StartMonitoringAll(ctx context.Context, interval time.Duration, cb func([]*core.ConnectionTestResult)) *MonitorHandle {
	handle := &MonitorHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(handle.done)

		t.logger.Info("Starting connection monitoring for all configured tenants",
			zap.Duration("interval", interval),
		)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		t.runCycleAll(ctx, cb)

		for {
			select {
			case <-ctx.Done():
				t.logger.Info("Stopping connection monitoring", zap.String("reason", "context cancelled"))
				return
			case <-handle.stop:
				t.logger.Info("Stopping connection monitoring", zap.String("reason", "handle stopped"))
				return
			case <-ticker.C:
				t.runCycleAll(ctx, cb)
			}
		}
	}()

	return handle
}

func (t *Tester) runCycleAll(ctx context.Context, cb func([]*core.ConnectionTestResult)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Monitoring cycle panicked, continuing", zap.Any("panic", r))
		}
	}()

	connections, err := t.configs.ListTenantConnections(ctx)
	if err != nil {
		t.logger.Error("Failed to list tenant connections, skipping cycle", zap.Error(err))
		return
	}

	results := t.TestMultipleConnections(ctx, connections)
	metrics.MonitorCycles.Inc()
	cb(results)
}

func (t *Tester) runCycle(ctx context.Context, tenantIDs []string, cb func([]*core.ConnectionTestResult)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Monitoring cycle panicked, continuing", zap.Any("panic", r))
		}
	}()

	results := make([]*core.ConnectionTestResult, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		results = append(results, t.safeTestByID(ctx, id))
	}

	metrics.MonitorCycles.Inc()
	cb(results)
}

func (t *Tester) safeTestByID(ctx context.Context, tenantID string) (result *core.ConnectionTestResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Connection test panicked",
				zap.String("tenant_id", tenantID),
				zap.Any("panic", r),
			)
			result = t.failed(tenantID, "", start, fmt.Errorf("connection test panicked: %v", r))
		}
	}()
	return t.TestTenantConnection(ctx, tenantID)
}

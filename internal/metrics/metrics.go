package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_hits_total",
		Help: "Number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_misses_total",
		Help: "Number of cache misses",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_errors_total",
		Help: "Cache store errors by operation",
	}, []string{"operation"})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_queries_total",
		Help: "Semantic queries served, by outcome",
	}, []string{"status"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_query_duration_seconds",
		Help:    "End-to-end semantic query latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "cached"})

	ConnectionTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_connection_tests_total",
		Help: "Tenant connection tests, by outcome",
	}, []string{"status"})

	TenantHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_tenant_healthy",
		Help: "1 when the tenant's last connection test succeeded",
	}, []string{"tenant_id"})

	MonitorCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_monitor_cycles_total",
		Help: "Completed health monitoring cycles",
	})

	WarmupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_preagg_warmups_total",
		Help: "Pre-aggregation warm-up attempts, by outcome",
	}, []string{"status"})
)

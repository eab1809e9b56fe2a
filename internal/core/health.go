package core

import "time"

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ConnectionMetadata is best-effort engine introspection gathered during a
// connection test. Extraction failure degrades to the zero-ish values below
// without failing the test.
type ConnectionMetadata struct {
	Version    string `json:"version"`
	Schema     string `json:"schema"`
	TableCount int    `json:"table_count"`
}

// UnknownMetadata is the degraded metadata reported when introspection fails.
func UnknownMetadata() *ConnectionMetadata {
	return &ConnectionMetadata{Version: "Unknown", Schema: "Unknown", TableCount: 0}
}

// ConnectionTestResult captures one tenant connectivity test. Constructed
// once per test invocation and never mutated afterwards.
type ConnectionTestResult struct {
	TenantID     string              `json:"tenant_id"`
	DatabaseType string              `json:"database_type"`
	Success      bool                `json:"success"`
	ResponseTime float64             `json:"response_time_ms"`
	Error        string              `json:"error,omitempty"`
	Metadata     *ConnectionMetadata `json:"metadata,omitempty"`
	CheckedAt    time.Time           `json:"checked_at"`
}

// HealthReport aggregates a batch of per-tenant connection tests.
type HealthReport struct {
	Overall          HealthStatus            `json:"overall"`
	TotalTenants     int                     `json:"total_tenants"`
	HealthyTenants   int                     `json:"healthy_tenants"`
	UnhealthyTenants int                     `json:"unhealthy_tenants"`
	Results          []*ConnectionTestResult `json:"results"`
	Recommendations  []string                `json:"recommendations"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

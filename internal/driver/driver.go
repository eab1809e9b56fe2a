// Package driver constructs database drivers for the closed set of engine
// kinds the gateway can route to. The factory is pure constructor dispatch:
// it holds no per-tenant state and every call yields a fresh driver bound to
// the supplied connection parameters.
package driver

import "context"

// Kind identifies a supported database engine.
type Kind string

const (
	KindPostgres   Kind = "postgres"
	KindMySQL      Kind = "mysql"
	KindClickHouse Kind = "clickhouse"
	KindSQLite     Kind = "sqlite"
	KindSnowflake  Kind = "snowflake"
	KindBigQuery   Kind = "bigquery"
)

var supportedKinds = []Kind{
	KindPostgres,
	KindMySQL,
	KindClickHouse,
	KindSQLite,
	KindSnowflake,
	KindBigQuery,
}

// ConnectionParams carries engine-kind-specific connection parameters. Each
// constructor validates the fields its kind requires.
type ConnectionParams struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	SSL      bool   `json:"ssl,omitempty"`

	// Snowflake
	Account string `json:"account,omitempty"`

	// SQLite
	Path string `json:"path,omitempty"`

	// BigQuery
	ProjectID   string `json:"projectId,omitempty"`
	KeyFilename string `json:"keyFilename,omitempty"`
}

// Rows is the engine-agnostic result shape handed back to callers.
type Rows struct {
	Columns []string        `json:"columns"`
	Values  [][]interface{} `json:"values"`
}

// Driver is the uniform adapter over one engine's native client.
type Driver interface {
	Connect(ctx context.Context) error
	Query(ctx context.Context, sql string) (*Rows, error)
	TestConnection(ctx context.Context) error
	Close() error
	Kind() Kind
}

// UnsupportedEngineError names an engine kind outside the supported set.
type UnsupportedEngineError struct {
	Kind Kind
}

func (e *UnsupportedEngineError) Error() string {
	return "unsupported database engine: " + string(e.Kind)
}

// New dispatches to the kind-specific constructor. Unsupported kinds fail
// immediately; there is no fallback engine.
func New(kind Kind, params ConnectionParams) (Driver, error) {
	switch kind {
	case KindPostgres:
		return newPostgresDriver(params)
	case KindMySQL:
		return newMySQLDriver(params)
	case KindClickHouse:
		return newClickHouseDriver(params)
	case KindSQLite:
		return newSQLiteDriver(params)
	case KindSnowflake:
		return newSnowflakeDriver(params)
	case KindBigQuery:
		return newBigQueryDriver(params)
	default:
		return nil, &UnsupportedEngineError{Kind: kind}
	}
}

// SupportedKinds returns the closed engine set.
func SupportedKinds() []Kind {
	out := make([]Kind, len(supportedKinds))
	copy(out, supportedKinds)
	return out
}

// IsSupported reports whether kind is in the supported set.
func IsSupported(kind Kind) bool {
	for _, k := range supportedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

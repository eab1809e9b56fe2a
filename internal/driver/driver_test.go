package driver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := New(Kind("oracle"), ConnectionParams{})
	require.Error(t, err)

	var ue *UnsupportedEngineError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, Kind("oracle"), ue.Kind)
	assert.Contains(t, err.Error(), "oracle")
}

func TestNew_Postgres(t *testing.T) {
	drv, err := New(KindPostgres, ConnectionParams{
		Host:     "localhost",
		Port:     5432,
		Database: "analytics",
		User:     "gateway",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, KindPostgres, drv.Kind())
}

func TestNew_ParamValidation(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		params ConnectionParams
	}{
		{"postgres missing host", KindPostgres, ConnectionParams{Database: "db", User: "u"}},
		{"mysql missing database", KindMySQL, ConnectionParams{Host: "h", User: "u"}},
		{"clickhouse missing host", KindClickHouse, ConnectionParams{Database: "db"}},
		{"sqlite missing path", KindSQLite, ConnectionParams{}},
		{"snowflake missing account", KindSnowflake, ConnectionParams{User: "u", Password: "p", Database: "db"}},
		{"bigquery missing key file", KindBigQuery, ConnectionParams{ProjectID: "proj"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.kind, tc.params)
			assert.Error(t, err)
		})
	}
}

func TestSupportedKinds(t *testing.T) {
	kinds := SupportedKinds()
	assert.Len(t, kinds, 6)

	for _, k := range kinds {
		assert.True(t, IsSupported(k))
	}
	assert.False(t, IsSupported(Kind("oracle")))
	assert.False(t, IsSupported(Kind("")))
}

func TestSQLiteDriver_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	drv, err := New(KindSQLite, ConnectionParams{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, drv.Connect(ctx))
	defer drv.Close()

	require.NoError(t, drv.TestConnection(ctx))

	_, err = drv.Query(ctx, "CREATE TABLE events (id INTEGER PRIMARY KEY, tenant_id TEXT)")
	require.NoError(t, err)
	_, err = drv.Query(ctx, "INSERT INTO events (tenant_id) VALUES ('acme-1'), ('acme-1'), ('other')")
	require.NoError(t, err)

	rows, err := drv.Query(ctx, "SELECT COUNT(*) AS n FROM events WHERE tenant_id = 'acme-1'")
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	assert.Equal(t, []string{"n"}, rows.Columns)
}

func TestSQLiteDriver_Introspection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	drv, err := New(KindSQLite, ConnectionParams{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, drv.Connect(ctx))
	defer drv.Close()

	rows, err := drv.Query(ctx, VersionQuery(KindSQLite))
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	assert.NotEmpty(t, rows.Values[0][0])

	rows, err = drv.Query(ctx, TableCountQuery(KindSQLite))
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
}

func TestQuery_RequiresConnect(t *testing.T) {
	drv, err := New(KindSQLite, ConnectionParams{Path: "ignored.db"})
	require.NoError(t, err)

	_, err = drv.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
	assert.Error(t, drv.TestConnection(context.Background()))
}

func TestIntrospectionQueries_CoverAllKinds(t *testing.T) {
	for _, kind := range SupportedKinds() {
		if kind == KindBigQuery {
			// No version probe; testing degrades metadata to Unknown
			assert.Empty(t, VersionQuery(kind))
			continue
		}
		assert.NotEmpty(t, VersionQuery(kind), string(kind))
		assert.NotEmpty(t, SchemaQuery(kind), string(kind))
		assert.NotEmpty(t, TableCountQuery(kind), string(kind))
	}
}

package driver

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	// database/sql driver registrations for the SQL-speaking engine kinds
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"
)

const connectTimeout = 10 * time.Second

// sqlDriver adapts every database/sql-backed engine behind the Driver
// interface. Kind-specific behavior lives entirely in DSN construction and
// parameter validation.
type sqlDriver struct {
	kind       Kind
	driverName string
	dsn        string
	db         *sqlx.DB
}

func newPostgresDriver(params ConnectionParams) (Driver, error) {
	if err := requireHostParams(KindPostgres, params); err != nil {
		return nil, err
	}
	port := params.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if params.SSL {
		sslmode = "require"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(params.User), url.QueryEscape(params.Password),
		params.Host, port, params.Database, sslmode)
	return &sqlDriver{kind: KindPostgres, driverName: "postgres", dsn: dsn}, nil
}

func newMySQLDriver(params ConnectionParams) (Driver, error) {
	if err := requireHostParams(KindMySQL, params); err != nil {
		return nil, err
	}
	port := params.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		params.User, params.Password, params.Host, port, params.Database)
	if params.SSL {
		dsn += "?tls=true"
	}
	return &sqlDriver{kind: KindMySQL, driverName: "mysql", dsn: dsn}, nil
}

func newClickHouseDriver(params ConnectionParams) (Driver, error) {
	if params.Host == "" || params.Database == "" {
		return nil, fmt.Errorf("clickhouse connection requires host and database")
	}
	port := params.Port
	if port == 0 {
		port = 9000
	}
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		url.QueryEscape(params.User), url.QueryEscape(params.Password),
		params.Host, port, params.Database)
	if params.SSL {
		dsn += "?secure=true"
	}
	return &sqlDriver{kind: KindClickHouse, driverName: "clickhouse", dsn: dsn}, nil
}

func newSQLiteDriver(params ConnectionParams) (Driver, error) {
	if params.Path == "" {
		return nil, fmt.Errorf("sqlite connection requires a file path")
	}
	return &sqlDriver{kind: KindSQLite, driverName: "sqlite", dsn: params.Path}, nil
}

func newSnowflakeDriver(params ConnectionParams) (Driver, error) {
	if params.Account == "" || params.User == "" || params.Password == "" || params.Database == "" {
		return nil, fmt.Errorf("snowflake connection requires account, user, password and database")
	}
	dsn := fmt.Sprintf("%s:%s@%s/%s",
		params.User, url.QueryEscape(params.Password), params.Account, params.Database)
	return &sqlDriver{kind: KindSnowflake, driverName: "snowflake", dsn: dsn}, nil
}

func requireHostParams(kind Kind, params ConnectionParams) error {
	if params.Host == "" || params.Database == "" || params.User == "" {
		return fmt.Errorf("%s connection requires host, database and user", kind)
	}
	return nil
}

func (d *sqlDriver) Kind() Kind {
	return d.kind
}

func (d *sqlDriver) Connect(ctx context.Context) error {
	db, err := sqlx.Open(d.driverName, d.dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", d.kind, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	d.db = db
	return nil
}

func (d *sqlDriver) TestConnection(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("%s driver is not connected", d.kind)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

func (d *sqlDriver) Query(ctx context.Context, query string) (*Rows, error) {
	if d.db == nil {
		return nil, fmt.Errorf("%s driver is not connected", d.kind)
	}

	rows, err := d.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", d.kind, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Rows{Columns: columns, Values: [][]interface{}{}}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		result.Values = append(result.Values, values)
	}
	return result, rows.Err()
}

func (d *sqlDriver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Package store persists per-tenant database connection configuration. The
// semantic layer proper treats tenant configuration as an external
// collaborator; this repository is the concrete binding the binaries wire in.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/driver"
)

// ErrTenantNotFound is returned when no connection is configured for a tenant.
var ErrTenantNotFound = errors.New("store: tenant connection not found")

// TenantConnection is one tenant's configured engine and connection
// parameters.
type TenantConnection struct {
	TenantID  string                  `json:"tenant_id"`
	Engine    driver.Kind             `json:"engine"`
	Params    driver.ConnectionParams `json:"params"`
	Enabled   bool                    `json:"enabled"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type tenantConnectionRow struct {
	TenantID  string          `db:"tenant_id"`
	Engine    string          `db:"engine"`
	Params    json.RawMessage `db:"params"`
	Enabled   bool            `db:"enabled"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *tenantConnectionRow) toDomain() (*TenantConnection, error) {
	tc := &TenantConnection{
		TenantID:  r.TenantID,
		Engine:    driver.Kind(r.Engine),
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Params, &tc.Params); err != nil {
		return nil, fmt.Errorf("corrupt connection params for tenant %s: %w", r.TenantID, err)
	}
	return tc, nil
}

type Repository struct {
	db *sqlx.DB
}

func NewConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping() error {
	return r.db.Ping()
}

func (r *Repository) GetTenantConnection(ctx context.Context, tenantID string) (*TenantConnection, error) {
	var row tenantConnectionRow
	query := `SELECT tenant_id, engine, params, enabled, created_at, updated_at
	          FROM tenant_connections WHERE tenant_id = $1`
	err := r.db.GetContext(ctx, &row, query, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *Repository) ListTenantConnections(ctx context.Context) ([]*TenantConnection, error) {
	rows := []tenantConnectionRow{}
	query := `SELECT tenant_id, engine, params, enabled, created_at, updated_at
	          FROM tenant_connections WHERE enabled = true ORDER BY tenant_id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make([]*TenantConnection, 0, len(rows))
	for i := range rows {
		tc, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, nil
}

func (r *Repository) UpsertTenantConnection(ctx context.Context, tc *TenantConnection) error {
	params, err := json.Marshal(tc.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal connection params: %w", err)
	}

	query := `
        INSERT INTO tenant_connections (tenant_id, engine, params, enabled, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        ON CONFLICT (tenant_id) DO UPDATE SET
            engine = EXCLUDED.engine,
            params = EXCLUDED.params,
            enabled = EXCLUDED.enabled,
            updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query, tc.TenantID, string(tc.Engine), params, tc.Enabled)
	return err
}

func (r *Repository) DeleteTenantConnection(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tenant_connections WHERE tenant_id = $1`, tenantID)
	return err
}

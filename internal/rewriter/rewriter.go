// Package rewriter guarantees tenant isolation at the query level: every
// semantic query that leaves this package carries exactly one tenant-scoping
// filter, and every routing name it derives is namespaced by tenant id.
package rewriter

import (
	"github.com/quantaleap/analytics-gateway/internal/core"
)

const (
	baseDatabase = "analytics"
	baseSchema   = "public"
	baseAppID    = "analytics_app"

	// EqualsOperator is the filter operator used for tenant scoping.
	EqualsOperator = "equals"
)

// Rewrite returns a copy of q scoped to the caller's tenant. If the caller's
// own tenant filter is already present the query is returned unchanged, so
// rewriting is idempotent. A missing or malformed tenant id fails closed with
// *core.TenantResolutionError: an unscoped query must never reach execution.
// So must a query scoped to someone else: a pre-existing tenant filter whose
// values are anything other than exactly the caller's tenant id is rejected,
// never rewritten.
func Rewrite(q *core.SemanticQuery, sc *core.SecurityContext) (*core.SemanticQuery, error) {
	if sc == nil {
		return nil, &core.TenantResolutionError{Reason: "security context is nil"}
	}
	if err := core.ValidateTenantID(sc.TenantID); err != nil {
		return nil, err
	}

	out := q.Clone()
	if out.Filters == nil {
		out.Filters = []core.Filter{}
	}
	if out.HasTenantFilter() {
		for _, f := range out.Filters {
			if f.Member != core.TenantMember {
				continue
			}
			if len(f.Values) != 1 || f.Values[0] != sc.TenantID {
				return nil, &core.TenantResolutionError{
					TenantID: sc.TenantID,
					Reason:   "query carries a tenant filter for a different tenant",
				}
			}
		}
		return out, nil
	}

	out.Filters = append(out.Filters, core.Filter{
		Member:   core.TenantMember,
		Operator: EqualsOperator,
		Values:   []string{sc.TenantID},
	})
	return out, nil
}

// ResolveDatabaseName maps a tenant id to its physical database name. The
// reserved "default" tenant keeps the base name; everyone else gets a
// deterministic per-tenant namespace. Pure; safe to call on every request.
func ResolveDatabaseName(tenantID string) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	if tenantID == core.DefaultTenantID {
		return baseDatabase, nil
	}
	return baseDatabase + "_" + tenantID, nil
}

// ResolveSchemaName maps a tenant id to its schema name.
func ResolveSchemaName(tenantID string) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	if tenantID == core.DefaultTenantID {
		return baseSchema, nil
	}
	return "tenant_" + tenantID, nil
}

// ResolveAppID derives the per-tenant application id used for cache
// namespacing and engine routing.
func ResolveAppID(sc *core.SecurityContext) (string, error) {
	if sc == nil {
		return "", &core.TenantResolutionError{Reason: "security context is nil"}
	}
	if err := core.ValidateTenantID(sc.TenantID); err != nil {
		return "", err
	}
	if sc.TenantID == core.DefaultTenantID {
		return baseAppID, nil
	}
	return baseAppID + "_" + sc.TenantID, nil
}

// Routing bundles the three tenant routing keys derived for one request.
type Routing struct {
	DatabaseName string `json:"database_name"`
	SchemaName   string `json:"schema_name"`
	AppID        string `json:"app_id"`
}

// ResolveRouting derives all three routing keys at once.
func ResolveRouting(sc *core.SecurityContext) (*Routing, error) {
	if sc == nil {
		return nil, &core.TenantResolutionError{Reason: "security context is nil"}
	}
	db, err := ResolveDatabaseName(sc.TenantID)
	if err != nil {
		return nil, err
	}
	schema, err := ResolveSchemaName(sc.TenantID)
	if err != nil {
		return nil, err
	}
	appID, err := ResolveAppID(sc)
	if err != nil {
		return nil, err
	}
	return &Routing{DatabaseName: db, SchemaName: schema, AppID: appID}, nil
}

package core

import (
	"fmt"
	"regexp"
)

// DefaultTenantID is the reserved tenant value that maps to the unnamespaced
// base database, schema and application id.
const DefaultTenantID = "default"

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// SecurityContext carries the externally-issued identity attached to every
// request. It is consumed, never created, by this service.
type SecurityContext struct {
	TenantID        string   `json:"tenant_id"`
	Roles           []string `json:"roles"`
	Permissions     []string `json:"permissions"`
	IsAuthenticated bool     `json:"is_authenticated"`
}

// TenantResolutionError indicates a missing or malformed tenant id. Requests
// carrying one must never reach query execution.
type TenantResolutionError struct {
	TenantID string
	Reason   string
}

func (e *TenantResolutionError) Error() string {
	if e.TenantID == "" {
		return fmt.Sprintf("tenant resolution failed: %s", e.Reason)
	}
	return fmt.Sprintf("tenant resolution failed for %q: %s", e.TenantID, e.Reason)
}

// ValidateTenantID rejects tenant ids that are empty or fall outside the
// allowed format. Every key construction and query rewrite goes through this,
// so a malformed tenant can never fall through to a shared namespace.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return &TenantResolutionError{Reason: "tenant id is empty"}
	}
	if !tenantIDPattern.MatchString(tenantID) {
		return &TenantResolutionError{TenantID: tenantID, Reason: "tenant id must match ^[A-Za-z0-9_-]{3,50}$"}
	}
	return nil
}

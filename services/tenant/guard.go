// Package tenant enforces the isolation boundary between customer data
// partitions. Access is deny-by-default: there is no role override, no admin
// bypass, and no wildcard.
package tenant

import (
	"github.com/google/uuid"
	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/services"
)

// AssertAccess grants access only when the requested tenant is non-empty and
// exactly equals the caller's own tenant. Every other combination, including
// a missing tenant id, fails with a forbidden error.
func AssertAccess(requestedTenantID uuid.UUID, caller *auth.ParsedClaims) error {
	if caller == nil {
		return services.ErrUnauthorized
	}
	if requestedTenantID == uuid.Nil {
		return services.ErrTenantMismatch.WithDetail("reason", "missing tenant id")
	}
	if requestedTenantID != caller.TenantID {
		return services.ErrTenantMismatch
	}
	return nil
}

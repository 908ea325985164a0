// Package repositories defines the persistence interfaces consumed by the
// service layer. Implementations live in the postgres subpackage.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/petroflow/billing-control-plane/models"
)

// DocumentRepository provides access to invoice documents.
type DocumentRepository interface {
	// GetByIDAndTenant returns the document only when it belongs to the
	// tenant. A document owned by another tenant is reported as not found.
	GetByIDAndTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status models.DocumentStatus) error
}

// PolicyRepository provides access to tenant policies.
type PolicyRepository interface {
	// GetActiveByTenantAndTypes returns active policies for the tenant
	// filtered to the given types, ordered by priority ascending. An empty
	// types slice matches all policy types.
	GetActiveByTenantAndTypes(ctx context.Context, tenantID uuid.UUID, types []models.PolicyType) ([]*models.Policy, error)
	GetByIDAndTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Policy, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Policy, error)
	Create(ctx context.Context, policy *models.Policy) error
	Update(ctx context.Context, policy *models.Policy) error
	Delete(ctx context.Context, id, tenantID uuid.UUID) error
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// ReviewQueueRepository persists manual review queue entries.
type ReviewQueueRepository interface {
	InsertMany(ctx context.Context, entries []*models.ReviewQueueEntry) error
}

// FraudFlagRepository persists fraud flags.
type FraudFlagRepository interface {
	InsertMany(ctx context.Context, flags []*models.FraudFlag) error
}

// MetricRepository persists per-evaluation confidence metrics.
type MetricRepository interface {
	Insert(ctx context.Context, metric *models.EvaluationMetric) error
}

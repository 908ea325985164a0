package postgres

import (
	"context"
	"database/sql"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// AuditRepository implements repositories.AuditRepository on PostgreSQL.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit log entry. Audit rows are immutable once written.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, tenant_id, document_id, action, resource_type,
			resource_id, details, old_state, new_state, request_id, ip_address,
			user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.DocumentID, entry.Action, entry.ResourceType,
		entry.ResourceID, nullableJSON(entry.Details), nullableJSON(entry.OldState),
		nullableJSON(entry.NewState), entry.RequestID, entry.IPAddress,
		entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		return services.WrapInternal("insert audit log", err)
	}
	return nil
}

// nullableJSON maps an empty raw message to SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

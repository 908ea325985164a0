package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// DocumentRepository implements repositories.DocumentRepository on PostgreSQL.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a DocumentRepository.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, tenant_id, invoice_number, vendor_name, vendor_tax_id,
	amount, currency, status, line_count, source, created_at, updated_at`

// GetByIDAndTenant fetches a document scoped to a tenant. Cross-tenant
// lookups return ErrDocumentNotFound, not a permission error, so the
// response does not leak the document's existence.
func (r *DocumentRepository) GetByIDAndTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 AND tenant_id = $2`, documentColumns)

	doc := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&doc.ID, &doc.TenantID, &doc.InvoiceNumber, &doc.VendorName, &doc.VendorTaxID,
		&doc.Amount, &doc.Currency, &doc.Status, &doc.LineCount, &doc.Source,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.ErrDocumentNotFound
	}
	if err != nil {
		return nil, services.WrapInternal("query document", err)
	}
	return doc, nil
}

// Create inserts a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, tenant_id, invoice_number, vendor_name, vendor_tax_id,
			amount, currency, status, line_count, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.TenantID, doc.InvoiceNumber, doc.VendorName, doc.VendorTaxID,
		doc.Amount, doc.Currency, doc.Status, doc.LineCount, doc.Source,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return services.WrapInternal("insert document", err)
	}
	return nil
}

// UpdateStatus sets the document status. Concurrent updates follow
// last-writer-wins; no row locking is taken.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status models.DocumentStatus) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`

	result, err := r.db.ExecContext(ctx, query, status, id, tenantID)
	if err != nil {
		return services.WrapInternal("update document status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return services.WrapInternal("update document status", err)
	}
	if rows == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

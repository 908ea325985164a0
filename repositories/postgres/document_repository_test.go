package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

func TestDocumentRepository_GetByIDAndTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentRepository(db)
	docID := uuid.New()
	tenantID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "invoice_number", "vendor_name", "vendor_tax_id",
		"amount", "currency", "status", "line_count", "source", "created_at", "updated_at",
	}).AddRow(docID, tenantID, "INV-2041", "Permian Tubulars LLC", "74-2219876",
		18250.00, "USD", "extracted", 12, "upload", now, now)

	mock.ExpectQuery(`SELECT (.+) FROM documents WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(docID, tenantID).
		WillReturnRows(rows)

	doc, err := repo.GetByIDAndTenant(context.Background(), docID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2041", doc.InvoiceNumber)
	assert.Equal(t, models.DocumentStatusExtracted, doc.Status)
	assert.Equal(t, 18250.00, doc.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_GetByIDAndTenant_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentRepository(db)
	docID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM documents`).
		WithArgs(docID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByIDAndTenant(context.Background(), docID, tenantID)
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentRepository(db)
	docID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectExec(`UPDATE documents SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(models.DocumentStatusBlocked, docID, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(context.Background(), docID, tenantID, models.DocumentStatusBlocked)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_UpdateStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentRepository(db)

	mock.ExpectExec(`UPDATE documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), uuid.New(), uuid.New(), models.DocumentStatusApproved)
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)
}

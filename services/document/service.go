// Package document exposes tenant-scoped read and ingest access to invoice
// documents.
package document

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/repositories"
	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/services/tenant"
	"github.com/petroflow/billing-control-plane/utils"
)

// CreateDocumentRequest is the input to Create.
type CreateDocumentRequest struct {
	TenantID      string  `json:"tenant_id" validate:"required,uuid"`
	InvoiceNumber string  `json:"invoice_number" validate:"required,min=1,max=100"`
	VendorName    string  `json:"vendor_name" validate:"required,min=1,max=200"`
	VendorTaxID   string  `json:"vendor_tax_id,omitempty" validate:"omitempty,max=50"`
	Amount        float64 `json:"amount" validate:"gte=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
	LineCount     int     `json:"line_count,omitempty" validate:"gte=0"`
	Source        string  `json:"source,omitempty" validate:"omitempty,oneof=upload email edi"`
}

// Service provides tenant-scoped document operations.
type Service struct {
	repo   repositories.DocumentRepository
	logger *zap.Logger
}

// NewService creates the document service.
func NewService(repo repositories.DocumentRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns a document scoped to the caller's tenant.
func (s *Service) Get(ctx context.Context, documentID, tenantID uuid.UUID, caller *auth.ParsedClaims) (*models.Document, error) {
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}
	return s.repo.GetByIDAndTenant(ctx, documentID, tenantID)
}

// Create ingests a new document in the received state.
func (s *Service) Create(ctx context.Context, req CreateDocumentRequest, caller *auth.ParsedClaims) (*models.Document, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "tenant_id")
	}
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}

	doc := models.NewDocument(tenantID, req.InvoiceNumber, req.VendorName, req.Amount, req.Currency)
	doc.VendorTaxID = req.VendorTaxID
	doc.LineCount = req.LineCount
	doc.Source = req.Source
	if doc.Source == "" {
		doc.Source = "upload"
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("source", doc.Source))
	return doc, nil
}

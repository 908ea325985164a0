package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the lifecycle state of an invoice document
type DocumentStatus string

const (
	DocumentStatusReceived      DocumentStatus = "received"
	DocumentStatusExtracted     DocumentStatus = "extracted"
	DocumentStatusPendingReview DocumentStatus = "pending_review"
	DocumentStatusApproved      DocumentStatus = "approved"
	DocumentStatusBlocked       DocumentStatus = "blocked"
	DocumentStatusRejected      DocumentStatus = "rejected"
	DocumentStatusPaid          DocumentStatus = "paid"
)

// Document represents a vendor invoice as seen by the policy engine
type Document struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	TenantID      uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	InvoiceNumber string         `json:"invoice_number" db:"invoice_number"`
	VendorName    string         `json:"vendor_name" db:"vendor_name"`
	VendorTaxID   string         `json:"vendor_tax_id" db:"vendor_tax_id"`
	Amount        float64        `json:"amount" db:"amount"`
	Currency      string         `json:"currency" db:"currency"`
	Status        DocumentStatus `json:"status" db:"status"`
	LineCount     int            `json:"line_count" db:"line_count"`
	Source        string         `json:"source" db:"source"` // upload, email, edi
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a new Document in the received state
func NewDocument(tenantID uuid.UUID, invoiceNumber, vendorName string, amount float64, currency string) *Document {
	now := time.Now()
	return &Document{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceNumber: invoiceNumber,
		VendorName:    vendorName,
		Amount:        amount,
		Currency:      currency,
		Status:        DocumentStatusReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Fields returns the document's policy-visible fields as a flat mapping.
// Keys here are the exact names conditions reference.
func (d *Document) Fields() map[string]any {
	return map[string]any{
		"document_id":    d.ID.String(),
		"tenant_id":      d.TenantID.String(),
		"invoice_number": d.InvoiceNumber,
		"vendor_name":    d.VendorName,
		"vendor_tax_id":  d.VendorTaxID,
		"amount":         d.Amount,
		"currency":       d.Currency,
		"status":         string(d.Status),
		"line_count":     d.LineCount,
		"source":         d.Source,
	}
}

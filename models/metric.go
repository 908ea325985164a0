package models

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationMetric records the confidence of one evaluation pass: the
// fraction of loaded policies that triggered.
type EvaluationMetric struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TenantID          uuid.UUID `json:"tenant_id" db:"tenant_id"`
	DocumentID        uuid.UUID `json:"document_id" db:"document_id"`
	PoliciesEvaluated int       `json:"policies_evaluated" db:"policies_evaluated"`
	PoliciesTriggered int       `json:"policies_triggered" db:"policies_triggered"`
	Confidence        float64   `json:"confidence" db:"confidence"`
	EvaluatedAt       time.Time `json:"evaluated_at" db:"evaluated_at"`
}

// TableName returns the table name for the EvaluationMetric model
func (EvaluationMetric) TableName() string {
	return "evaluation_metrics"
}

// NewEvaluationMetric computes the confidence fraction for one pass.
// Confidence is 0 when no policies were loaded.
func NewEvaluationMetric(tenantID, documentID uuid.UUID, evaluated, triggered int) *EvaluationMetric {
	confidence := 0.0
	if evaluated > 0 {
		confidence = float64(triggered) / float64(evaluated)
	}
	return &EvaluationMetric{
		ID:                uuid.New(),
		TenantID:          tenantID,
		DocumentID:        documentID,
		PoliciesEvaluated: evaluated,
		PoliciesTriggered: triggered,
		Confidence:        confidence,
		EvaluatedAt:       time.Now(),
	}
}

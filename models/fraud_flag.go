package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FraudFlag represents a fraud indicator raised against a document
type FraudFlag struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	DocumentID uuid.UUID       `json:"document_id" db:"document_id"`
	PolicyID   uuid.UUID       `json:"policy_id" db:"policy_id"`
	FlagType   string          `json:"flag_type" db:"flag_type"` // duplicate_invoice, amount_anomaly, vendor_mismatch
	RiskScore  float64         `json:"risk_score" db:"risk_score"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the FraudFlag model
func (FraudFlag) TableName() string {
	return "fraud_flags"
}

// NewFraudFlag creates a fraud flag for a document
func NewFraudFlag(tenantID, documentID, policyID uuid.UUID, flagType string, riskScore float64, details any) *FraudFlag {
	flag := &FraudFlag{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DocumentID: documentID,
		PolicyID:   policyID,
		FlagType:   flagType,
		RiskScore:  riskScore,
		CreatedAt:  time.Now(),
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			flag.Details = data
		}
	}
	return flag
}

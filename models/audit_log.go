package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionPolicyEvaluated          AuditAction = "policy_evaluated"
	AuditActionStringExpressionRejected AuditAction = "policy_string_expression_rejected"
	AuditActionPolicyCreated            AuditAction = "policy_created"
	AuditActionPolicyUpdated            AuditAction = "policy_updated"
	AuditActionPolicyDeleted            AuditAction = "policy_deleted"
	AuditActionStatusChanged            AuditAction = "document_status_changed"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	TenantID     uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	DocumentID   *uuid.UUID      `json:"document_id,omitempty" db:"document_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // document, policy
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	OldState     json.RawMessage `json:"old_state,omitempty" db:"old_state"`
	NewState     json.RawMessage `json:"new_state,omitempty" db:"new_state"`
	RequestID    string          `json:"request_id" db:"request_id"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(tenantID uuid.UUID, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithDocument sets the document ID
func (a *AuditLog) WithDocument(documentID uuid.UUID) *AuditLog {
	a.DocumentID = &documentID
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails marshals and sets the details payload
func (a *AuditLog) WithDetails(details any) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithStates marshals and sets the before/after document snapshots
func (a *AuditLog) WithStates(oldState, newState any) *AuditLog {
	if data, err := json.Marshal(oldState); err == nil {
		a.OldState = data
	}
	if data, err := json.Marshal(newState); err == nil {
		a.NewState = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

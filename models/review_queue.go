package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus represents the state of a review queue entry
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusAssigned  ReviewStatus = "assigned"
	ReviewStatusCompleted ReviewStatus = "completed"
)

// ReviewQueueEntry represents a document awaiting manual attention
type ReviewQueueEntry struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	TenantID   uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	DocumentID uuid.UUID    `json:"document_id" db:"document_id"`
	PolicyID   uuid.UUID    `json:"policy_id" db:"policy_id"`
	Priority   string       `json:"priority" db:"priority"` // low, normal, high, urgent
	Reason     string       `json:"reason" db:"reason"`
	Status     ReviewStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the ReviewQueueEntry model
func (ReviewQueueEntry) TableName() string {
	return "review_queue"
}

// NewReviewQueueEntry creates a pending review queue entry
func NewReviewQueueEntry(tenantID, documentID, policyID uuid.UUID, priority, reason string) *ReviewQueueEntry {
	if priority == "" {
		priority = "normal"
	}
	return &ReviewQueueEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DocumentID: documentID,
		PolicyID:   policyID,
		Priority:   priority,
		Reason:     reason,
		Status:     ReviewStatusPending,
		CreatedAt:  time.Now(),
	}
}

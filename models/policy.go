package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyType represents the decision surface a policy participates in
type PolicyType string

const (
	PolicyTypeValidation PolicyType = "validation"
	PolicyTypeApproval   PolicyType = "approval"
	PolicyTypeRouting    PolicyType = "routing"
	PolicyTypeFraud      PolicyType = "fraud"
)

// AllPolicyTypes lists every supported policy type, the default filter for
// evaluation requests that do not name one.
var AllPolicyTypes = []PolicyType{
	PolicyTypeValidation,
	PolicyTypeApproval,
	PolicyTypeRouting,
	PolicyTypeFraud,
}

// ValidPolicyType reports whether t is one of the enumerated policy types
func ValidPolicyType(t PolicyType) bool {
	switch t {
	case PolicyTypeValidation, PolicyTypeApproval, PolicyTypeRouting, PolicyTypeFraud:
		return true
	}
	return false
}

// Operator is the comparison applied by a single condition
type Operator string

const (
	OperatorEquals    Operator = "equals"
	OperatorNotEquals Operator = "not_equals"
	OperatorGT        Operator = "gt"
	OperatorGTE       Operator = "gte"
	OperatorLT        Operator = "lt"
	OperatorLTE       Operator = "lte"
	OperatorIncludes  Operator = "includes"
	OperatorRegex     Operator = "regex"
)

// ValidOperator reports whether op is one of the enumerated operators
func ValidOperator(op Operator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals, OperatorGT, OperatorGTE,
		OperatorLT, OperatorLTE, OperatorIncludes, OperatorRegex:
		return true
	}
	return false
}

// Condition is one atomic test against a context field
type Condition struct {
	Field    string   `json:"field" validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// ConditionSet maps condition keys to their raw JSON definitions. Values are
// kept raw so the safety gate can distinguish structured conditions from
// legacy string expressions before anything is evaluated.
type ConditionSet map[string]json.RawMessage

// Value implements driver.Valuer for JSONB storage
func (c ConditionSet) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB storage
func (c *ConditionSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ConditionSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into ConditionSet", src)
	}
}

// ActionType tags the variant of an Action
type ActionType string

const (
	ActionBlockApproval       ActionType = "block_approval"
	ActionRequireManualReview ActionType = "require_manual_review"
	ActionFlagForFraud        ActionType = "flag_for_fraud"
	ActionUpdateStatus        ActionType = "update_status"
)

// Action is a tagged variant; only the fields for its type are populated.
// Unknown types are preserved and treated as no-ops during dispatch.
type Action struct {
	Type ActionType `json:"type"`

	// require_manual_review
	Priority string `json:"priority,omitempty"`

	// flag_for_fraud
	FlagType  string         `json:"flag_type,omitempty"`
	RiskScore float64        `json:"risk_score,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	// update_status
	NewStatus string `json:"new_status,omitempty"`
}

// ActionList is an ordered sequence of actions stored as JSONB
type ActionList []Action

// Value implements driver.Valuer for JSONB storage
func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB storage
func (a *ActionList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ActionList{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into ActionList", src)
	}
}

// Policy represents a named, typed, conjunctive rule owned by a tenant
type Policy struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	TenantID   uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	PolicyName string       `json:"policy_name" db:"policy_name"`
	PolicyType PolicyType   `json:"policy_type" db:"policy_type"`
	IsActive   bool         `json:"is_active" db:"is_active"`
	Priority   int          `json:"priority" db:"priority"`
	Conditions ConditionSet `json:"conditions" db:"conditions"`
	Actions    ActionList   `json:"actions" db:"actions"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates a new active Policy
func NewPolicy(tenantID uuid.UUID, name string, policyType PolicyType, priority int) *Policy {
	now := time.Now()
	return &Policy{
		ID:         uuid.New(),
		TenantID:   tenantID,
		PolicyName: name,
		PolicyType: policyType,
		IsActive:   true,
		Priority:   priority,
		Conditions: ConditionSet{},
		Actions:    ActionList{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

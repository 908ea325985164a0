// Package policy manages tenant policy definitions. Writes validate the
// structured condition schema, so a raw string expression can never enter the
// store through this service.
package policy

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/repositories"
	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/services/audit"
	"github.com/petroflow/billing-control-plane/services/rules"
	"github.com/petroflow/billing-control-plane/services/tenant"
	"github.com/petroflow/billing-control-plane/utils"
)

// CreatePolicyRequest is the input to Create.
type CreatePolicyRequest struct {
	TenantID   string              `json:"tenant_id" validate:"required,uuid"`
	PolicyName string              `json:"policy_name" validate:"required,min=1,max=200"`
	PolicyType models.PolicyType   `json:"policy_type" validate:"required"`
	Priority   int                 `json:"priority" validate:"gte=0,lte=1000"`
	IsActive   *bool               `json:"is_active,omitempty"`
	Conditions models.ConditionSet `json:"conditions" validate:"required"`
	Actions    models.ActionList   `json:"actions"`
}

// UpdatePolicyRequest is the input to Update. Nil fields are left unchanged.
type UpdatePolicyRequest struct {
	PolicyName *string              `json:"policy_name,omitempty" validate:"omitempty,min=1,max=200"`
	PolicyType *models.PolicyType   `json:"policy_type,omitempty"`
	Priority   *int                 `json:"priority,omitempty" validate:"omitempty,gte=0,lte=1000"`
	IsActive   *bool                `json:"is_active,omitempty"`
	Conditions *models.ConditionSet `json:"conditions,omitempty"`
	Actions    *models.ActionList   `json:"actions,omitempty"`
}

// Service manages policy definitions.
type Service struct {
	repo   repositories.PolicyRepository
	audit  *audit.Service
	logger *zap.Logger
}

// NewService creates the policy service.
func NewService(repo repositories.PolicyRepository, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: auditSvc, logger: logger}
}

// Create validates and stores a new policy.
func (s *Service) Create(ctx context.Context, req CreatePolicyRequest, caller *auth.ParsedClaims, requestID, ip, userAgent string) (*models.Policy, error) {
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
	if !models.ValidPolicyType(req.PolicyType) {
		return nil, services.ErrInvalidPolicyType.WithDetail("policy_type", string(req.PolicyType))
	}
	if err := validateConditions(req.Conditions); err != nil {
		return nil, err
	}

	p := models.NewPolicy(tenantID, req.PolicyName, req.PolicyType, req.Priority)
	p.Conditions = req.Conditions
	p.Actions = req.Actions
	if p.Actions == nil {
		p.Actions = models.ActionList{}
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.audit.LogPolicyCreated(tenantID, p, requestID, ip, userAgent)
	s.logger.Info("policy created",
		zap.String("policy_id", p.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("policy_type", string(p.PolicyType)))
	return p, nil
}

// Get returns a policy scoped to the caller's tenant.
func (s *Service) Get(ctx context.Context, policyID, tenantID uuid.UUID, caller *auth.ParsedClaims) (*models.Policy, error) {
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}
	return s.repo.GetByIDAndTenant(ctx, policyID, tenantID)
}

// List returns all of a tenant's policies.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, caller *auth.ParsedClaims) ([]*models.Policy, error) {
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// Update applies a partial update to a policy.
func (s *Service) Update(ctx context.Context, policyID, tenantID uuid.UUID, req UpdatePolicyRequest, caller *auth.ParsedClaims, requestID, ip, userAgent string) (*models.Policy, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByIDAndTenant(ctx, policyID, tenantID)
	if err != nil {
		return nil, err
	}
	before := *existing

	if req.PolicyName != nil {
		existing.PolicyName = *req.PolicyName
	}
	if req.PolicyType != nil {
		if !models.ValidPolicyType(*req.PolicyType) {
			return nil, services.ErrInvalidPolicyType.WithDetail("policy_type", string(*req.PolicyType))
		}
		existing.PolicyType = *req.PolicyType
	}
	if req.Priority != nil {
		existing.Priority = *req.Priority
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.Conditions != nil {
		if err := validateConditions(*req.Conditions); err != nil {
			return nil, err
		}
		existing.Conditions = *req.Conditions
	}
	if req.Actions != nil {
		existing.Actions = *req.Actions
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.audit.LogPolicyUpdated(tenantID, &before, existing, requestID, ip, userAgent)
	return existing, nil
}

// Delete removes a policy.
func (s *Service) Delete(ctx context.Context, policyID, tenantID uuid.UUID, caller *auth.ParsedClaims, requestID, ip, userAgent string) error {
	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, policyID, tenantID); err != nil {
		return err
	}
	s.audit.LogPolicyDeleted(tenantID, policyID, requestID, ip, userAgent)
	return nil
}

// validateConditions rejects raw string expressions and malformed condition
// objects at write time.
func validateConditions(conditions models.ConditionSet) error {
	if rules.HasStringExpression(conditions) {
		return services.ErrUnsafePolicy
	}
	for key, raw := range conditions {
		if _, err := rules.ParseCondition(raw); err != nil {
			return services.ErrInvalidInput.
				WithDetail("condition", key).
				WithDetail("reason", err.Error())
		}
	}
	return nil
}

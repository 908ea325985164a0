package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/services/audit"
	"github.com/petroflow/billing-control-plane/utils"
)

type fakePolicyRepo struct {
	store map[uuid.UUID]*models.Policy
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{store: make(map[uuid.UUID]*models.Policy)}
}

func (r *fakePolicyRepo) GetActiveByTenantAndTypes(context.Context, uuid.UUID, []models.PolicyType) ([]*models.Policy, error) {
	return nil, nil
}

func (r *fakePolicyRepo) GetByIDAndTenant(_ context.Context, id, tenantID uuid.UUID) (*models.Policy, error) {
	p, ok := r.store[id]
	if !ok || p.TenantID != tenantID {
		return nil, services.ErrPolicyNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePolicyRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*models.Policy, error) {
	var out []*models.Policy
	for _, p := range r.store {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePolicyRepo) Create(_ context.Context, p *models.Policy) error {
	r.store[p.ID] = p
	return nil
}

func (r *fakePolicyRepo) Update(_ context.Context, p *models.Policy) error {
	if _, ok := r.store[p.ID]; !ok {
		return services.ErrPolicyNotFound
	}
	r.store[p.ID] = p
	return nil
}

func (r *fakePolicyRepo) Delete(_ context.Context, id, tenantID uuid.UUID) error {
	p, ok := r.store[id]
	if !ok || p.TenantID != tenantID {
		return services.ErrPolicyNotFound
	}
	delete(r.store, id)
	return nil
}

type nopAuditRepo struct{}

func (nopAuditRepo) Insert(context.Context, *models.AuditLog) error { return nil }

func newTestService(t *testing.T) (*Service, *fakePolicyRepo) {
	t.Helper()
	repo := newFakePolicyRepo()
	auditSvc := audit.NewService(nopAuditRepo{}, zap.NewNop(), 16, 1)
	t.Cleanup(auditSvc.Stop)
	return NewService(repo, auditSvc, zap.NewNop()), repo
}

func caller(tenantID uuid.UUID) *auth.ParsedClaims {
	return &auth.ParsedClaims{Sub: "user-1", TenantID: tenantID}
}

func validCreateRequest(tenantID uuid.UUID) CreatePolicyRequest {
	return CreatePolicyRequest{
		TenantID:   tenantID.String(),
		PolicyName: "block high value",
		PolicyType: models.PolicyTypeApproval,
		Priority:   10,
		Conditions: models.ConditionSet{
			"amount": json.RawMessage(`{"field":"amount","operator":"gt","value":50000}`),
		},
		Actions: models.ActionList{{Type: models.ActionBlockApproval}},
	}
}

func TestCreatePolicy(t *testing.T) {
	svc, repo := newTestService(t)
	tenantID := uuid.New()

	p, err := svc.Create(context.Background(), validCreateRequest(tenantID), caller(tenantID), "req-1", "", "")
	require.NoError(t, err)

	assert.Equal(t, "block high value", p.PolicyName)
	assert.True(t, p.IsActive)
	assert.Contains(t, repo.store, p.ID)
}

func TestCreatePolicyRejectsStringExpression(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	req := validCreateRequest(tenantID)
	req.Conditions = models.ConditionSet{
		"expr": json.RawMessage(`"amount > 50000"`),
	}

	_, err := svc.Create(context.Background(), req, caller(tenantID), "", "", "")
	require.Error(t, err)
	assert.True(t, services.IsUnsafePolicyError(err))
}

func TestCreatePolicyRejectsMalformedCondition(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	req := validCreateRequest(tenantID)
	req.Conditions = models.ConditionSet{
		"bad": json.RawMessage(`{"field":"amount","operator":"approximately","value":1}`),
	}

	_, err := svc.Create(context.Background(), req, caller(tenantID), "", "", "")
	require.Error(t, err)
	assert.Equal(t, services.ErrorTypeValidation, services.GetErrorType(err))
}

func TestCreatePolicyRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	req := validCreateRequest(tenantID)
	req.PolicyType = "billing"

	_, err := svc.Create(context.Background(), req, caller(tenantID), "", "", "")
	require.Error(t, err)
	assert.Equal(t, services.ErrorTypeValidation, services.GetErrorType(err))
}

func TestCreatePolicyCrossTenantForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	_, err := svc.Create(context.Background(), validCreateRequest(tenantID), caller(uuid.New()), "", "", "")
	require.Error(t, err)
	assert.True(t, services.IsForbiddenError(err))
}

func TestCreatePolicyValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	req := validCreateRequest(tenantID)
	req.PolicyName = ""

	_, err := svc.Create(context.Background(), req, caller(tenantID), "", "", "")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
}

func TestUpdatePolicyPartial(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	created, err := svc.Create(context.Background(), validCreateRequest(tenantID), caller(tenantID), "", "", "")
	require.NoError(t, err)

	inactive := false
	name := "block very high value"
	updated, err := svc.Update(context.Background(), created.ID, tenantID,
		UpdatePolicyRequest{PolicyName: &name, IsActive: &inactive},
		caller(tenantID), "", "", "")
	require.NoError(t, err)

	assert.Equal(t, "block very high value", updated.PolicyName)
	assert.False(t, updated.IsActive)
	// untouched fields survive
	assert.Equal(t, 10, updated.Priority)
	assert.Contains(t, updated.Conditions, "amount")
}

func TestUpdatePolicyRejectsStringExpression(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	created, err := svc.Create(context.Background(), validCreateRequest(tenantID), caller(tenantID), "", "", "")
	require.NoError(t, err)

	bad := models.ConditionSet{"expr": json.RawMessage(`"status == 'paid'"`)}
	_, err = svc.Update(context.Background(), created.ID, tenantID,
		UpdatePolicyRequest{Conditions: &bad}, caller(tenantID), "", "", "")
	require.Error(t, err)
	assert.True(t, services.IsUnsafePolicyError(err))
}

func TestDeletePolicy(t *testing.T) {
	svc, repo := newTestService(t)
	tenantID := uuid.New()

	created, err := svc.Create(context.Background(), validCreateRequest(tenantID), caller(tenantID), "", "", "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, tenantID, caller(tenantID), "", "", "")
	require.NoError(t, err)
	assert.NotContains(t, repo.store, created.ID)
}

func TestDeletePolicyNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	tenantID := uuid.New()

	err := svc.Delete(context.Background(), uuid.New(), tenantID, caller(tenantID), "", "", "")
	assert.ErrorIs(t, err, services.ErrPolicyNotFound)
}

package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

func policyRow(id, tenantID uuid.UUID, name string, priority int) []driverValue {
	now := time.Now()
	conditions := []byte(`{"high_amount":{"field":"amount","operator":"gt","value":10000}}`)
	actions := []byte(`[{"type":"require_manual_review","priority":"high"}]`)
	return []driverValue{id, tenantID, name, "approval", true, priority, conditions, actions, now, now}
}

type driverValue = driver.Value

func TestPolicyRepository_GetActiveByTenantAndTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPolicyRepository(db)
	tenantID := uuid.New()
	firstID := uuid.New()
	secondID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "policy_name", "policy_type", "is_active", "priority",
		"conditions", "actions", "created_at", "updated_at",
	}).
		AddRow(policyRow(firstID, tenantID, "high value review", 10)...).
		AddRow(policyRow(secondID, tenantID, "very high value review", 20)...)

	mock.ExpectQuery(`SELECT (.+) FROM policies\s+WHERE tenant_id = \$1 AND is_active = TRUE`).
		WithArgs(tenantID, sqlmock.AnyArg()).
		WillReturnRows(rows)

	policies, err := repo.GetActiveByTenantAndTypes(context.Background(), tenantID,
		[]models.PolicyType{models.PolicyTypeApproval})
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, firstID, policies[0].ID)
	assert.Equal(t, 10, policies[0].Priority)
	assert.Contains(t, policies[0].Conditions, "high_amount")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepository_GetActiveByTenantAndTypes_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPolicyRepository(db)
	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM policies`).
		WithArgs(tenantID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	policies, err := repo.GetActiveByTenantAndTypes(context.Background(), tenantID, nil)
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestPolicyRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPolicyRepository(db)
	policy := models.NewPolicy(uuid.New(), "duplicate vendor check", models.PolicyTypeFraud, 5)
	policy.Conditions = models.ConditionSet{
		"dup": json.RawMessage(`{"field":"vendor_tax_id","operator":"equals","value":"74-2219876"}`),
	}

	mock.ExpectExec(`INSERT INTO policies`).
		WithArgs(policy.ID, policy.TenantID, policy.PolicyName, policy.PolicyType,
			policy.IsActive, policy.Priority, sqlmock.AnyArg(), sqlmock.AnyArg(),
			policy.CreatedAt, policy.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), policy)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepository_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPolicyRepository(db)
	policy := models.NewPolicy(uuid.New(), "ghost", models.PolicyTypeValidation, 1)

	mock.ExpectExec(`UPDATE policies`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), policy)
	assert.ErrorIs(t, err, services.ErrPolicyNotFound)
}

func TestPolicyRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPolicyRepository(db)
	policyID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectExec(`DELETE FROM policies WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(policyID, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(context.Background(), policyID, tenantID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

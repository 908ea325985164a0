package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// PolicyRepository implements repositories.PolicyRepository on PostgreSQL.
type PolicyRepository struct {
	db *sql.DB
}

// NewPolicyRepository creates a PolicyRepository.
func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `id, tenant_id, policy_name, policy_type, is_active, priority,
	conditions, actions, created_at, updated_at`

// GetActiveByTenantAndTypes loads active policies for the tenant, filtered by
// type, ordered by priority ascending. Policies are read fresh on every call
// so activation changes take effect immediately.
func (r *PolicyRepository) GetActiveByTenantAndTypes(ctx context.Context, tenantID uuid.UUID, types []models.PolicyType) ([]*models.Policy, error) {
	if len(types) == 0 {
		types = models.AllPolicyTypes
	}
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM policies
		WHERE tenant_id = $1 AND is_active = TRUE AND policy_type = ANY($2)
		ORDER BY priority ASC, created_at ASC`, policyColumns)

	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(typeNames))
	if err != nil {
		return nil, services.WrapInternal("query active policies", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// GetByIDAndTenant fetches a single policy scoped to a tenant.
func (r *PolicyRepository) GetByIDAndTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE id = $1 AND tenant_id = $2`, policyColumns)

	policy := &models.Policy{}
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&policy.ID, &policy.TenantID, &policy.PolicyName, &policy.PolicyType,
		&policy.IsActive, &policy.Priority, &policy.Conditions, &policy.Actions,
		&policy.CreatedAt, &policy.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.ErrPolicyNotFound
	}
	if err != nil {
		return nil, services.WrapInternal("query policy", err)
	}
	return policy, nil
}

// ListByTenant returns all policies for a tenant, active or not.
func (r *PolicyRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Policy, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM policies
		WHERE tenant_id = $1
		ORDER BY priority ASC, created_at ASC`, policyColumns)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, services.WrapInternal("list policies", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// Create inserts a new policy.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (id, tenant_id, policy_name, policy_type, is_active,
			priority, conditions, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		policy.ID, policy.TenantID, policy.PolicyName, policy.PolicyType,
		policy.IsActive, policy.Priority, policy.Conditions, policy.Actions,
		policy.CreatedAt, policy.UpdatedAt,
	)
	if err != nil {
		return services.WrapInternal("insert policy", err)
	}
	return nil
}

// Update rewrites a policy's mutable fields.
func (r *PolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	query := `
		UPDATE policies
		SET policy_name = $1, policy_type = $2, is_active = $3, priority = $4,
			conditions = $5, actions = $6, updated_at = NOW()
		WHERE id = $7 AND tenant_id = $8`

	result, err := r.db.ExecContext(ctx, query,
		policy.PolicyName, policy.PolicyType, policy.IsActive, policy.Priority,
		policy.Conditions, policy.Actions, policy.ID, policy.TenantID,
	)
	if err != nil {
		return services.WrapInternal("update policy", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return services.WrapInternal("update policy", err)
	}
	if rows == 0 {
		return services.ErrPolicyNotFound
	}
	return nil
}

// Delete removes a policy.
func (r *PolicyRepository) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM policies WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return services.WrapInternal("delete policy", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return services.WrapInternal("delete policy", err)
	}
	if rows == 0 {
		return services.ErrPolicyNotFound
	}
	return nil
}

func scanPolicies(rows *sql.Rows) ([]*models.Policy, error) {
	var policies []*models.Policy
	for rows.Next() {
		policy := &models.Policy{}
		if err := rows.Scan(
			&policy.ID, &policy.TenantID, &policy.PolicyName, &policy.PolicyType,
			&policy.IsActive, &policy.Priority, &policy.Conditions, &policy.Actions,
			&policy.CreatedAt, &policy.UpdatedAt,
		); err != nil {
			return nil, services.WrapInternal("scan policy", err)
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapInternal("iterate policies", err)
	}
	return policies, nil
}

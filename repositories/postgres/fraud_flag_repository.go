package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// FraudFlagRepository implements repositories.FraudFlagRepository on PostgreSQL.
type FraudFlagRepository struct {
	db *sql.DB
}

// NewFraudFlagRepository creates a FraudFlagRepository.
func NewFraudFlagRepository(db *sql.DB) *FraudFlagRepository {
	return &FraudFlagRepository{db: db}
}

// InsertMany records fraud flags against documents in one statement.
func (r *FraudFlagRepository) InsertMany(ctx context.Context, flags []*models.FraudFlag) error {
	if len(flags) == 0 {
		return nil
	}

	const cols = 8
	placeholders := make([]string, 0, len(flags))
	args := make([]any, 0, len(flags)*cols)
	for i, f := range flags {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, f.ID, f.TenantID, f.DocumentID, f.PolicyID,
			f.FlagType, f.RiskScore, nullableJSON(f.Details), f.CreatedAt)
	}

	query := `
		INSERT INTO fraud_flags (id, tenant_id, document_id, policy_id, flag_type,
			risk_score, details, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return services.WrapInternal("insert fraud flags", err)
	}
	return nil
}

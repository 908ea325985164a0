package postgres

import (
	"context"
	"database/sql"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// MetricRepository implements repositories.MetricRepository on PostgreSQL.
type MetricRepository struct {
	db *sql.DB
}

// NewMetricRepository creates a MetricRepository.
func NewMetricRepository(db *sql.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// Insert records the confidence metric for one evaluation pass.
func (r *MetricRepository) Insert(ctx context.Context, metric *models.EvaluationMetric) error {
	query := `
		INSERT INTO evaluation_metrics (id, tenant_id, document_id,
			policies_evaluated, policies_triggered, confidence, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		metric.ID, metric.TenantID, metric.DocumentID,
		metric.PoliciesEvaluated, metric.PoliciesTriggered,
		metric.Confidence, metric.EvaluatedAt,
	)
	if err != nil {
		return services.WrapInternal("insert evaluation metric", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// ReviewQueueRepository implements repositories.ReviewQueueRepository on PostgreSQL.
type ReviewQueueRepository struct {
	db *sql.DB
}

// NewReviewQueueRepository creates a ReviewQueueRepository.
func NewReviewQueueRepository(db *sql.DB) *ReviewQueueRepository {
	return &ReviewQueueRepository{db: db}
}

// InsertMany enqueues documents for manual review in one statement. Repeated
// triggers produce repeated entries; deduplication is left to the review UI.
func (r *ReviewQueueRepository) InsertMany(ctx context.Context, entries []*models.ReviewQueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const cols = 8
	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*cols)
	for i, e := range entries {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, e.ID, e.TenantID, e.DocumentID, e.PolicyID,
			e.Priority, e.Reason, e.Status, e.CreatedAt)
	}

	query := `
		INSERT INTO review_queue (id, tenant_id, document_id, policy_id, priority,
			reason, status, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return services.WrapInternal("insert review queue entries", err)
	}
	return nil
}

package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/models"
)

type recordingRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *recordingRepo) Insert(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingRepo) all() []*models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLog(nil), r.entries...)
}

func TestServiceRecordsEntries(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo, zap.NewNop(), 16, 1)

	tenantID := uuid.New()
	documentID := uuid.New()
	svc.LogEvaluation(tenantID, documentID,
		map[string]any{"decision": "approved"}, nil, nil, "req-1", "10.0.0.1", "ua")
	svc.Stop()

	entries := repo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionPolicyEvaluated, entries[0].Action)
	assert.Equal(t, tenantID, entries[0].TenantID)
	require.NotNil(t, entries[0].DocumentID)
	assert.Equal(t, documentID, *entries[0].DocumentID)
	assert.Equal(t, "req-1", entries[0].RequestID)
}

func TestServiceStringExpressionRejection(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo, zap.NewNop(), 16, 1)

	policyID := uuid.New()
	svc.LogStringExpressionRejected(uuid.New(), uuid.New(), policyID, "req-2", "", "")
	svc.Stop()

	entries := repo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionStringExpressionRejected, entries[0].Action)
	assert.Equal(t, "policy", entries[0].ResourceType)
	assert.Contains(t, string(entries[0].Details), policyID.String())
}

func TestServiceDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	repo := &blockingRepo{unblock: block}
	svc := NewService(repo, zap.NewNop(), 1, 1)

	// First entry occupies the worker, second fills the buffer, third drops.
	for i := 0; i < 3; i++ {
		svc.Record(models.NewAuditLog(uuid.New(), models.AuditActionPolicyCreated, "policy"))
	}
	close(block)
	svc.Stop()

	assert.LessOrEqual(t, repo.count(), 2)
}

func TestRecordAfterStopIsNoop(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo, zap.NewNop(), 4, 1)
	svc.Stop()

	assert.NotPanics(t, func() {
		svc.Record(models.NewAuditLog(uuid.New(), models.AuditActionPolicyDeleted, "policy"))
	})
	assert.Empty(t, repo.all())
}

type blockingRepo struct {
	mu      sync.Mutex
	n       int
	unblock chan struct{}
}

func (r *blockingRepo) Insert(_ context.Context, _ *models.AuditLog) error {
	<-r.unblock
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	return nil
}

func (r *blockingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

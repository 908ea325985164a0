// Package audit records the audit trail asynchronously. Entries are queued on
// a buffered channel and written by a small worker pool so audit persistence
// never blocks the request path.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/repositories"
)

const writeTimeout = 5 * time.Second

// Service queues and persists audit log entries.
type Service struct {
	repo     repositories.AuditRepository
	logger   *zap.Logger
	queue    chan *models.AuditLog
	wg       sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewService creates the audit service and starts its workers.
func NewService(repo repositories.AuditRepository, logger *zap.Logger, bufferSize, workers int) *Service {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if workers <= 0 {
		workers = 2
	}

	s := &Service{
		repo:    repo,
		logger:  logger,
		queue:   make(chan *models.AuditLog, bufferSize),
		stopped: make(chan struct{}),
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

func (s *Service) worker() {
	defer s.wg.Done()
	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.repo.Insert(ctx, entry); err != nil {
			s.logger.Error("audit write failed",
				zap.String("action", string(entry.Action)),
				zap.String("tenant_id", entry.TenantID.String()),
				zap.Error(err))
		}
		cancel()
	}
}

// Record enqueues an audit entry without blocking. When the queue is full the
// entry is dropped and the drop is logged; the business operation proceeds.
func (s *Service) Record(entry *models.AuditLog) {
	select {
	case <-s.stopped:
		return
	default:
	}

	select {
	case s.queue <- entry:
	default:
		s.logger.Warn("audit queue full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("tenant_id", entry.TenantID.String()))
	}
}

// Stop closes the queue and waits for in-flight writes to finish. Safe to
// call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		close(s.queue)
	})
	s.wg.Wait()
}

// LogEvaluation records a completed policy evaluation against a document.
func (s *Service) LogEvaluation(tenantID, documentID uuid.UUID, details any, oldState, newState any, requestID, ip, userAgent string) {
	entry := models.NewAuditLog(tenantID, models.AuditActionPolicyEvaluated, "document").
		WithDocument(documentID).
		WithResource(documentID).
		WithDetails(details).
		WithStates(oldState, newState).
		WithRequest(requestID, ip, userAgent)
	s.Record(entry)
}

// LogStringExpressionRejected records an evaluation rejected by the safety
// gate because a policy carried a raw string expression.
func (s *Service) LogStringExpressionRejected(tenantID, documentID, policyID uuid.UUID, requestID, ip, userAgent string) {
	entry := models.NewAuditLog(tenantID, models.AuditActionStringExpressionRejected, "policy").
		WithDocument(documentID).
		WithResource(policyID).
		WithDetails(map[string]any{"policy_id": policyID.String()}).
		WithRequest(requestID, ip, userAgent)
	s.Record(entry)
}

// LogPolicyCreated records a policy creation.
func (s *Service) LogPolicyCreated(tenantID uuid.UUID, policy *models.Policy, requestID, ip, userAgent string) {
	entry := models.NewAuditLog(tenantID, models.AuditActionPolicyCreated, "policy").
		WithResource(policy.ID).
		WithStates(nil, policy).
		WithRequest(requestID, ip, userAgent)
	s.Record(entry)
}

// LogPolicyUpdated records a policy update with before/after snapshots.
func (s *Service) LogPolicyUpdated(tenantID uuid.UUID, before, after *models.Policy, requestID, ip, userAgent string) {
	entry := models.NewAuditLog(tenantID, models.AuditActionPolicyUpdated, "policy").
		WithResource(after.ID).
		WithStates(before, after).
		WithRequest(requestID, ip, userAgent)
	s.Record(entry)
}

// LogPolicyDeleted records a policy deletion.
func (s *Service) LogPolicyDeleted(tenantID, policyID uuid.UUID, requestID, ip, userAgent string) {
	entry := models.NewAuditLog(tenantID, models.AuditActionPolicyDeleted, "policy").
		WithResource(policyID).
		WithRequest(requestID, ip, userAgent)
	s.Record(entry)
}

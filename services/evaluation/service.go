// Package evaluation implements the policy evaluation engine: it loads a
// document and its tenant's active policies, evaluates every policy's
// conditions conjunctively, dispatches the actions of triggered policies, and
// records the audit trail and confidence metric for the pass.
package evaluation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/metrics"
	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/repositories"
	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/services/audit"
	"github.com/petroflow/billing-control-plane/services/rules"
	"github.com/petroflow/billing-control-plane/services/tenant"
	"github.com/petroflow/billing-control-plane/utils"
)

// Decision is the aggregate outcome of one evaluation pass.
type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionRequiresReview Decision = "requires_review"
	DecisionBlocked        Decision = "blocked"
)

// EvaluationRequest is the input to one evaluation pass.
type EvaluationRequest struct {
	DocumentID  string              `json:"document_id" validate:"required,uuid"`
	TenantID    string              `json:"tenant_id" validate:"required,uuid"`
	PolicyTypes []models.PolicyType `json:"policy_types,omitempty"`
	// Context is caller-supplied extra context. Its keys overlay the
	// document-derived fields.
	Context map[string]any `json:"context,omitempty"`
}

// RequestMeta carries request metadata into the audit trail.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// ConditionDetail explains one condition's outcome within a policy.
type ConditionDetail struct {
	Key      string          `json:"key"`
	Field    string          `json:"field,omitempty"`
	Operator models.Operator `json:"operator,omitempty"`
	Expected any             `json:"expected,omitempty"`
	Actual   any             `json:"actual,omitempty"`
	Matched  bool            `json:"matched"`
	Error    string          `json:"error,omitempty"`
}

// PolicyResult is the per-policy outcome of an evaluation pass.
type PolicyResult struct {
	PolicyID   uuid.UUID         `json:"policy_id"`
	PolicyName string            `json:"policy_name"`
	PolicyType models.PolicyType `json:"policy_type"`
	Priority   int               `json:"priority"`
	Triggered  bool              `json:"triggered"`
	Conditions []ConditionDetail `json:"conditions"`
}

// ExecutedAction reports the dispatch outcome of one accumulated action.
type ExecutedAction struct {
	Type      models.ActionType `json:"type"`
	PolicyID  uuid.UUID         `json:"policy_id"`
	Status    string            `json:"status"` // completed, failed, skipped
	NewStatus string            `json:"new_status,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// FieldChange is one document field that changed during the pass.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// EvaluationResponse is the full result of one evaluation pass.
type EvaluationResponse struct {
	DocumentID        uuid.UUID        `json:"document_id"`
	TenantID          uuid.UUID        `json:"tenant_id"`
	Decision          Decision         `json:"decision"`
	PoliciesEvaluated int              `json:"policies_evaluated"`
	PoliciesTriggered int              `json:"policies_triggered"`
	Confidence        float64          `json:"confidence"`
	Results           []PolicyResult   `json:"results"`
	ExecutedActions   []ExecutedAction `json:"executed_actions"`
	Changes           []FieldChange    `json:"changes"`
	EvaluatedAt       time.Time        `json:"evaluated_at"`
}

// Service orchestrates evaluation passes.
type Service struct {
	documents   repositories.DocumentRepository
	policies    repositories.PolicyRepository
	reviewQueue repositories.ReviewQueueRepository
	fraudFlags  repositories.FraudFlagRepository
	metricsRepo repositories.MetricRepository
	audit       *audit.Service
	evaluator   *rules.Evaluator
	collectors  *metrics.Metrics
	logger      *zap.Logger
}

// NewService wires the evaluation engine. collectors may be nil when
// Prometheus is disabled.
func NewService(
	documents repositories.DocumentRepository,
	policies repositories.PolicyRepository,
	reviewQueue repositories.ReviewQueueRepository,
	fraudFlags repositories.FraudFlagRepository,
	metricsRepo repositories.MetricRepository,
	auditSvc *audit.Service,
	evaluator *rules.Evaluator,
	collectors *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		documents:   documents,
		policies:    policies,
		reviewQueue: reviewQueue,
		fraudFlags:  fraudFlags,
		metricsRepo: metricsRepo,
		audit:       auditSvc,
		evaluator:   evaluator,
		collectors:  collectors,
		logger:      logger,
	}
}

// Evaluate runs one evaluation pass for the document named in the request.
//
// A policy carrying a raw string expression rejects the entire request before
// any condition is evaluated. Action dispatch is concurrent and
// non-transactional: each side-effect write succeeds or fails independently,
// nothing rolls back, and any write failure surfaces as an internal error
// after the surviving writes have been applied and audited.
func (s *Service) Evaluate(ctx context.Context, req EvaluationRequest, caller *auth.ParsedClaims, meta RequestMeta) (*EvaluationResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	for _, pt := range req.PolicyTypes {
		if !models.ValidPolicyType(pt) {
			return nil, services.ErrInvalidPolicyType.WithDetail("policy_type", string(pt))
		}
	}

	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "document_id")
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "tenant_id")
	}

	if err := tenant.AssertAccess(tenantID, caller); err != nil {
		return nil, err
	}

	doc, err := s.documents.GetByIDAndTenant(ctx, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	oldFields := doc.Fields()

	evalContext := rules.BuildContext(doc, req.Context)

	// Policies are read fresh on every pass; there is no cache, so
	// activation changes apply immediately.
	policies, err := s.policies.GetActiveByTenantAndTypes(ctx, tenantID, req.PolicyTypes)
	if err != nil {
		return nil, err
	}

	// Safety gate: one legacy string-expression policy poisons the whole
	// request. Nothing is evaluated, nothing is dispatched.
	for _, policy := range policies {
		if rules.HasStringExpression(policy.Conditions) {
			s.audit.LogStringExpressionRejected(tenantID, documentID, policy.ID,
				meta.RequestID, meta.IPAddress, meta.UserAgent)
			if s.collectors != nil {
				s.collectors.UnsafePolicyRejects.Inc()
			}
			s.logger.Warn("rejected evaluation: policy carries string expression",
				zap.String("policy_id", policy.ID.String()),
				zap.String("tenant_id", tenantID.String()))
			return nil, services.ErrUnsafePolicy.
				WithDetail("policy_id", policy.ID.String()).
				WithDetail("policy_name", policy.PolicyName)
		}
	}

	results := make([]PolicyResult, 0, len(policies))
	var triggered []*models.Policy
	for _, policy := range policies {
		result, err := s.evaluatePolicy(policy, evalContext)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		if result.Triggered {
			triggered = append(triggered, policy)
		}
	}

	actions := accumulateActions(triggered)
	executed, dispatchErr := s.dispatch(ctx, doc, actions)

	// Re-read so the response reflects what dispatch actually wrote. Writes
	// that succeeded stay applied even when a sibling write failed.
	updated, err := s.documents.GetByIDAndTenant(ctx, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	changes := diffFields(oldFields, updated.Fields())

	decision := decide(actions)
	metric := models.NewEvaluationMetric(tenantID, documentID, len(policies), len(triggered))
	if err := s.metricsRepo.Insert(ctx, metric); err != nil {
		s.logger.Error("failed to record evaluation metric", zap.Error(err))
	}
	if s.collectors != nil {
		s.collectors.EvaluationsTotal.WithLabelValues(string(decision)).Inc()
		s.collectors.EvaluationConfidence.Observe(metric.Confidence)
		s.collectors.PoliciesTriggered.Observe(float64(len(triggered)))
	}

	fired := make([]map[string]string, 0, len(triggered))
	for _, p := range triggered {
		fired = append(fired, map[string]string{
			"policy_id":   p.ID.String(),
			"policy_name": p.PolicyName,
		})
	}
	s.audit.LogEvaluation(tenantID, documentID, map[string]any{
		"decision":           decision,
		"policies_evaluated": len(policies),
		"policies_triggered": len(triggered),
		"fired_policies":     fired,
		"confidence":         metric.Confidence,
	}, oldFields, updated.Fields(), meta.RequestID, meta.IPAddress, meta.UserAgent)

	if dispatchErr != nil {
		return nil, services.WrapError(services.ErrorTypeInternal, "action dispatch failed", dispatchErr)
	}

	return &EvaluationResponse{
		DocumentID:        documentID,
		TenantID:          tenantID,
		Decision:          decision,
		PoliciesEvaluated: len(policies),
		PoliciesTriggered: len(triggered),
		Confidence:        metric.Confidence,
		Results:           results,
		ExecutedActions:   executed,
		Changes:           changes,
		EvaluatedAt:       metric.EvaluatedAt,
	}, nil
}

// evaluatePolicy evaluates one policy's conditions conjunctively. Every
// condition is evaluated even after the first miss so the result carries a
// full explanation. A policy with no conditions triggers unconditionally
// (vacuous AND).
func (s *Service) evaluatePolicy(policy *models.Policy, evalContext map[string]any) (PolicyResult, error) {
	result := PolicyResult{
		PolicyID:   policy.ID,
		PolicyName: policy.PolicyName,
		PolicyType: policy.PolicyType,
		Priority:   policy.Priority,
		Conditions: make([]ConditionDetail, 0, len(policy.Conditions)),
	}

	allMatched := true
	for key, raw := range policy.Conditions {
		detail := ConditionDetail{Key: key}

		cond, err := rules.ParseCondition(raw)
		if err != nil {
			// A malformed condition fails closed: the policy cannot
			// trigger, and the detail says why.
			detail.Error = err.Error()
			allMatched = false
			result.Conditions = append(result.Conditions, detail)
			continue
		}

		detail.Field = cond.Field
		detail.Operator = cond.Operator
		detail.Expected = cond.Value
		detail.Actual = evalContext[cond.Field]

		matched, err := s.evaluator.Evaluate(cond, evalContext)
		if err != nil {
			if services.IsOperatorDisabledError(err) {
				// Disabled operators abort the pass rather than
				// silently skipping the condition.
				return PolicyResult{}, services.ErrRegexOperatorDisabled.
					WithDetail("policy_id", policy.ID.String()).
					WithDetail("condition", key)
			}
			detail.Error = err.Error()
			allMatched = false
			result.Conditions = append(result.Conditions, detail)
			continue
		}

		detail.Matched = matched
		if !matched {
			allMatched = false
		}
		result.Conditions = append(result.Conditions, detail)
	}

	result.Triggered = allMatched
	return result, nil
}

// pendingAction pairs an action with the policy that produced it.
type pendingAction struct {
	action models.Action
	policy *models.Policy
}

// accumulateActions collects every triggered policy's actions in priority
// order. No policy short-circuits another; all triggered actions dispatch.
func accumulateActions(triggered []*models.Policy) []pendingAction {
	var actions []pendingAction
	for _, policy := range triggered {
		for _, action := range policy.Actions {
			actions = append(actions, pendingAction{action: action, policy: policy})
		}
	}
	return actions
}

// decide folds accumulated actions into the aggregate decision with
// precedence blocked > requires_review > approved.
func decide(actions []pendingAction) Decision {
	decision := DecisionApproved
	for _, pa := range actions {
		switch pa.action.Type {
		case models.ActionBlockApproval:
			return DecisionBlocked
		case models.ActionRequireManualReview:
			decision = DecisionRequiresReview
		}
	}
	return decision
}

// dispatch executes the accumulated side-effect batch: review-queue inserts,
// fraud-flag inserts, and at most one status update, all issued concurrently.
// The writes are independent: a failed write does not abort or roll back its
// peers. Status-bearing actions fold into a single update where the last one
// in priority order wins. The returned error is the first write failure, if
// any.
func (s *Service) dispatch(ctx context.Context, doc *models.Document, actions []pendingAction) ([]ExecutedAction, error) {
	executed := make([]ExecutedAction, len(actions))

	var reviewEntries []*models.ReviewQueueEntry
	var fraudFlags []*models.FraudFlag
	var reviewIdx, fraudIdx, statusIdx []int
	var finalStatus models.DocumentStatus

	for i, pa := range actions {
		executed[i] = ExecutedAction{Type: pa.action.Type, PolicyID: pa.policy.ID, Status: "completed"}

		switch pa.action.Type {
		case models.ActionBlockApproval:
			finalStatus = models.DocumentStatusBlocked
			executed[i].NewStatus = string(models.DocumentStatusBlocked)
			statusIdx = append(statusIdx, i)

		case models.ActionUpdateStatus:
			finalStatus = models.DocumentStatus(pa.action.NewStatus)
			executed[i].NewStatus = pa.action.NewStatus
			statusIdx = append(statusIdx, i)

		case models.ActionRequireManualReview:
			reviewEntries = append(reviewEntries, models.NewReviewQueueEntry(
				doc.TenantID, doc.ID, pa.policy.ID, pa.action.Priority, pa.policy.PolicyName))
			reviewIdx = append(reviewIdx, i)

		case models.ActionFlagForFraud:
			fraudFlags = append(fraudFlags, models.NewFraudFlag(
				doc.TenantID, doc.ID, pa.policy.ID, pa.action.FlagType,
				pa.action.RiskScore, pa.action.Details))
			fraudIdx = append(fraudIdx, i)

		default:
			// Unknown action types are preserved as no-ops so older
			// policies keep evaluating after a rollback.
			executed[i].Status = "skipped"
			s.logger.Warn("skipping unknown action type",
				zap.String("type", string(pa.action.Type)),
				zap.String("policy_id", pa.policy.ID.String()))
		}
	}

	// A plain errgroup (no derived context) so one failed write does not
	// cancel its in-flight peers.
	var g errgroup.Group
	if len(reviewEntries) > 0 {
		g.Go(func() error {
			if err := s.reviewQueue.InsertMany(ctx, reviewEntries); err != nil {
				s.recordDispatchFailure(executed, actions, reviewIdx, err)
				return err
			}
			return nil
		})
	}
	if len(fraudFlags) > 0 {
		g.Go(func() error {
			if err := s.fraudFlags.InsertMany(ctx, fraudFlags); err != nil {
				s.recordDispatchFailure(executed, actions, fraudIdx, err)
				return err
			}
			return nil
		})
	}
	if len(statusIdx) > 0 {
		status := finalStatus
		g.Go(func() error {
			if err := s.documents.UpdateStatus(ctx, doc.ID, doc.TenantID, status); err != nil {
				s.recordDispatchFailure(executed, actions, statusIdx, err)
				return err
			}
			return nil
		})
	}

	return executed, g.Wait()
}

func (s *Service) recordDispatchFailure(executed []ExecutedAction, actions []pendingAction, indexes []int, err error) {
	if s.collectors != nil {
		s.collectors.ActionDispatchErrors.Inc()
	}
	for _, i := range indexes {
		executed[i].Status = "failed"
		executed[i].Error = err.Error()
		s.logger.Error("action dispatch failed",
			zap.String("type", string(actions[i].action.Type)),
			zap.String("policy_id", actions[i].policy.ID.String()),
			zap.Error(err))
	}
}

// diffFields compares the document's policy-visible fields before and after
// dispatch.
func diffFields(before, after map[string]any) []FieldChange {
	var changes []FieldChange
	for field, oldVal := range before {
		newVal := after[field]
		if !jsonEqual(oldVal, newVal) {
			changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
		}
	}
	return changes
}

func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

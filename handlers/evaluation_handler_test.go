package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/services/audit"
	"github.com/petroflow/billing-control-plane/services/evaluation"
	"github.com/petroflow/billing-control-plane/services/rules"
)

// Minimal in-memory repositories for handler-level tests.

type memDocs struct{ doc *models.Document }

func (m *memDocs) GetByIDAndTenant(_ context.Context, id, tenantID uuid.UUID) (*models.Document, error) {
	if m.doc == nil || m.doc.ID != id || m.doc.TenantID != tenantID {
		return nil, services.ErrDocumentNotFound
	}
	copied := *m.doc
	return &copied, nil
}
func (m *memDocs) Create(_ context.Context, doc *models.Document) error { m.doc = doc; return nil }
func (m *memDocs) UpdateStatus(_ context.Context, _, _ uuid.UUID, status models.DocumentStatus) error {
	m.doc.Status = status
	return nil
}

type memPolicies struct{ policies []*models.Policy }

func (m *memPolicies) GetActiveByTenantAndTypes(context.Context, uuid.UUID, []models.PolicyType) ([]*models.Policy, error) {
	return m.policies, nil
}
func (m *memPolicies) GetByIDAndTenant(context.Context, uuid.UUID, uuid.UUID) (*models.Policy, error) {
	return nil, services.ErrPolicyNotFound
}
func (m *memPolicies) ListByTenant(context.Context, uuid.UUID) ([]*models.Policy, error) {
	return m.policies, nil
}
func (m *memPolicies) Create(context.Context, *models.Policy) error       { return nil }
func (m *memPolicies) Update(context.Context, *models.Policy) error       { return nil }
func (m *memPolicies) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type memReviews struct{}

func (memReviews) InsertMany(context.Context, []*models.ReviewQueueEntry) error { return nil }

type memFlags struct{}

func (memFlags) InsertMany(context.Context, []*models.FraudFlag) error { return nil }

type memMetrics struct{}

func (memMetrics) Insert(context.Context, *models.EvaluationMetric) error { return nil }

type memAudit struct{}

func (memAudit) Insert(context.Context, *models.AuditLog) error { return nil }

func newEvaluationRouter(t *testing.T, docs *memDocs, policies *memPolicies, caller *auth.ParsedClaims) http.Handler {
	t.Helper()
	auditSvc := audit.NewService(memAudit{}, zap.NewNop(), 16, 1)
	t.Cleanup(auditSvc.Stop)

	svc := evaluation.NewService(docs, policies, memReviews{}, memFlags{}, memMetrics{},
		auditSvc, rules.NewEvaluator(rules.Config{}), nil, zap.NewNop())
	h := NewEvaluationHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithClaims(req.Context(), caller)))
		})
	})
	r.Post("/api/v1/policies/evaluate", h.Evaluate)
	return r
}

func TestEvaluateEndpoint(t *testing.T) {
	tenantID := uuid.New()
	doc := models.NewDocument(tenantID, "INV-88", "Eagle Ford Logistics", 62000, "USD")
	docs := &memDocs{doc: doc}

	blockPolicy := models.NewPolicy(tenantID, "block over 50k", models.PolicyTypeApproval, 10)
	blockPolicy.Conditions = models.ConditionSet{
		"amount": json.RawMessage(`{"field":"amount","operator":"gt","value":50000}`),
	}
	blockPolicy.Actions = models.ActionList{{Type: models.ActionBlockApproval}}

	router := newEvaluationRouter(t, docs, &memPolicies{policies: []*models.Policy{blockPolicy}},
		&auth.ParsedClaims{Sub: "u1", TenantID: tenantID})

	body, _ := json.Marshal(map[string]any{
		"document_id": doc.ID.String(),
		"tenant_id":   tenantID.String(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/evaluate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp evaluation.EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, evaluation.DecisionBlocked, resp.Decision)
	assert.Equal(t, 1, resp.PoliciesTriggered)
	assert.Equal(t, models.DocumentStatusBlocked, docs.doc.Status)
}

func TestEvaluateEndpointUnsafePolicyReturns400(t *testing.T) {
	tenantID := uuid.New()
	doc := models.NewDocument(tenantID, "INV-89", "Eagle Ford Logistics", 100, "USD")

	legacy := models.NewPolicy(tenantID, "legacy", models.PolicyTypeValidation, 1)
	legacy.Conditions = models.ConditionSet{
		"expr": json.RawMessage(`"amount > 50"`),
	}

	router := newEvaluationRouter(t, &memDocs{doc: doc},
		&memPolicies{policies: []*models.Policy{legacy}},
		&auth.ParsedClaims{Sub: "u1", TenantID: tenantID})

	body, _ := json.Marshal(map[string]any{
		"document_id": doc.ID.String(),
		"tenant_id":   tenantID.String(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/evaluate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), legacy.ID.String())
}

func TestEvaluateEndpointBadBody(t *testing.T) {
	router := newEvaluationRouter(t, &memDocs{}, &memPolicies{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/evaluate",
		bytes.NewReader([]byte(`{not json`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateEndpointMissingFields(t *testing.T) {
	router := newEvaluationRouter(t, &memDocs{}, &memPolicies{},
		&auth.ParsedClaims{Sub: "u1", TenantID: uuid.New()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/evaluate",
		bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/services/policy"
	"github.com/petroflow/billing-control-plane/utils"
)

// PolicyHandler exposes policy CRUD endpoints.
type PolicyHandler struct {
	service *policy.Service
	logger  *zap.Logger
}

// NewPolicyHandler creates a PolicyHandler.
func NewPolicyHandler(service *policy.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{service: service, logger: logger}
}

// Create handles POST /api/v1/policies.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req policy.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	meta := requestMeta(r)
	created, err := h.service.Create(r.Context(), req, caller, meta.RequestID, meta.IPAddress, meta.UserAgent)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteCreated(w, created)
}

// Get handles GET /api/v1/policies/{id}.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policyID, tenantID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	p, err := h.service.Get(r.Context(), policyID, tenantID, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteOK(w, p)
}

// List handles GET /api/v1/policies.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		utils.WriteBadRequest(w, "tenant_id query parameter must be a valid UUID", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	policies, err := h.service.List(r.Context(), tenantID, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteOK(w, policies)
}

// Update handles PATCH /api/v1/policies/{id}.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	policyID, tenantID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req policy.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	meta := requestMeta(r)
	updated, err := h.service.Update(r.Context(), policyID, tenantID, req, caller, meta.RequestID, meta.IPAddress, meta.UserAgent)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteOK(w, updated)
}

// Delete handles DELETE /api/v1/policies/{id}.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	policyID, tenantID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	meta := requestMeta(r)
	if err := h.service.Delete(r.Context(), policyID, tenantID, caller, meta.RequestID, meta.IPAddress, meta.UserAgent); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// pathIDs parses the policy id path parameter and the tenant_id query
// parameter, writing the error response itself on failure.
func (h *PolicyHandler) pathIDs(w http.ResponseWriter, r *http.Request) (policyID, tenantID uuid.UUID, ok bool) {
	policyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteBadRequest(w, "policy id must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, err = uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		utils.WriteBadRequest(w, "tenant_id query parameter must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return policyID, tenantID, true
}

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/services/evaluation"
	"github.com/petroflow/billing-control-plane/utils"
)

// EvaluationHandler exposes the policy evaluation endpoint.
type EvaluationHandler struct {
	service *evaluation.Service
	logger  *zap.Logger
}

// NewEvaluationHandler creates an EvaluationHandler.
func NewEvaluationHandler(service *evaluation.Service, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{service: service, logger: logger}
}

// Evaluate handles POST /api/v1/policies/evaluate.
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluation.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	resp, err := h.service.Evaluate(r.Context(), req, caller, requestMeta(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteOK(w, resp)
}

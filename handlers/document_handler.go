package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/services/document"
	"github.com/petroflow/billing-control-plane/utils"
)

// DocumentHandler exposes document endpoints.
type DocumentHandler struct {
	service *document.Service
	logger  *zap.Logger
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(service *document.Service, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: logger}
}

// Get handles GET /api/v1/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteBadRequest(w, "document id must be a valid UUID", nil)
		return
	}
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		utils.WriteBadRequest(w, "tenant_id query parameter must be a valid UUID", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	doc, err := h.service.Get(r.Context(), documentID, tenantID, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteOK(w, doc)
}

// Create handles POST /api/v1/documents.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req document.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	caller := middleware.GetClaimsFromContext(r.Context())
	doc, err := h.service.Create(r.Context(), req, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteCreated(w, doc)
}

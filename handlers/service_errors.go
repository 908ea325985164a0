// Package handlers implements the HTTP API surface.
package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/services"
	"github.com/petroflow/billing-control-plane/utils"
)

// HandleServiceError maps a service-layer error to its HTTP response. The
// unsafe-policy rejection is a client error: the tenant's policy set is the
// client's own data, so a 400 with the offending policy id lets them fix it.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		details := make(map[string]interface{})
		for field, msg := range utils.GetValidationFields(err) {
			details[field] = msg
		}
		utils.WriteBadRequest(w, "Validation failed", details)
		return
	}

	switch services.GetErrorType(err) {
	case services.ErrorTypeNotFound:
		utils.WriteNotFound(w, err.Error())
	case services.ErrorTypeValidation:
		utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))
	case services.ErrorTypeUnauthorized:
		utils.WriteUnauthorized(w, err.Error())
	case services.ErrorTypeForbidden:
		utils.WriteForbidden(w, "")
	case services.ErrorTypeUnsafePolicy:
		utils.WriteBadRequest(w, "policy contains a raw string expression and cannot be evaluated",
			services.GetErrorDetails(err))
	case services.ErrorTypeOperatorDisabled:
		utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))
	case services.ErrorTypeConflict:
		utils.WriteConflict(w, err.Error(), services.GetErrorDetails(err))
	default:
		logger.Error("unhandled service error", zap.Error(err))
		utils.WriteInternalServerError(w, "")
	}
}

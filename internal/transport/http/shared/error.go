package shared

import (
	"errors"
	"net/http"

	"proofdeck/internal/transport/http/json"
	dErrors "proofdeck/pkg/domain-errors"
)

// WriteError translates transport-agnostic domain errors into HTTP status
// codes and a stable JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}
	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeVersionMismatch:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeReplayDetected:
		return http.StatusConflict
	case dErrors.CodeBindingMismatch, dErrors.CodeTemporalInvalid, dErrors.CodeSignatureInvalid:
		return http.StatusUnprocessableEntity
	case dErrors.CodeCoverageIncomplete:
		return http.StatusForbidden
	case dErrors.CodeCapabilityUnavailable, dErrors.CodeNotInitialized:
		return http.StatusServiceUnavailable
	case dErrors.CodePersistence, dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

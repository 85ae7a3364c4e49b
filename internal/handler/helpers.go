package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opadata/checkout-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var invalidParams *domain.ErrInvalidPlanParams
	var validation *domain.ErrValidation
	var invalidDoc *domain.ErrInvalidDocument
	var terms *domain.ErrTermsNotAccepted
	var notFound *domain.ErrNotFound
	var lookupFailed *domain.ErrLookupFailed
	var notAuth *domain.ErrNotAuthenticated
	var inFlight *domain.ErrOperationInFlight
	var conflict *domain.ErrConflict
	var unauthorized *domain.ErrUnauthorized
	var external *domain.ErrExternalService
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var invalidTransition *domain.ErrInvalidTransition

	switch {
	case errors.As(err, &invalidParams):
		logger.Debug("invalid plan parameters", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalidDoc):
		logger.Debug("invalid document", zap.String("kind", invalidDoc.Kind))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &terms):
		logger.Debug("terms not accepted")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &lookupFailed):
		logger.Warn("postal code lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &notAuth):
		logger.Warn("submit attempted without authentication")
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &inFlight):
		logger.Debug("operation in flight", zap.String("operation", inFlight.Operation))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &invalidTransition):
		logger.Debug("invalid wizard transition", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

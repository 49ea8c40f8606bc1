package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/planner"
	"famfin/internal/services"
	"famfin/internal/storage"
)

var errUnauthorized = errors.New("missing or invalid X-User-ID header")

// domainErrors are core validation sentinels reported as 422.
var domainErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyCategory,
	core.ErrEmptyName,
	core.ErrEmptyDescription,
	core.ErrDescriptionLong,
	core.ErrMessageLong,
	core.ErrEmptyRole,
	core.ErrGoalReached,
	core.ErrInvalidStatus,
	planner.ErrInvalidInput,
}

// invalid marks err as a validation failure.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", services.ErrValidation, err)
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrNoPlan):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes the matching JSON error response. Server
// errors are reported to the client without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	message := err.Error()
	switch {
	case status >= 500:
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		message = "internal server error"
		if status == http.StatusServiceUnavailable {
			message = "request timed out"
		}
	case status == http.StatusNotFound:
		logger.DebugContext(r.Context(), "Resource not found",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	default:
		logger.WarnContext(r.Context(), "Request rejected",
			log.NewFields().WithOperation(op).WithError(err).WithErrorType(errorType(status)).ToSlice()...)
	}
	ErrorResponse(status, message).Write(w)
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusForbidden:
		return log.ErrorTypeForbidden
	case http.StatusConflict:
		return log.ErrorTypeConflict
	default:
		return log.ErrorTypeValidation
	}
}

package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the billing subsystem. Services wrap these with
// context via fmt.Errorf("...: %w", ...) so callers can match with
// errors.Is at the request boundary.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid subscription transition")
	ErrInvalidInvoiceState = errors.New("invalid invoice state")
	ErrAlreadyProcessed    = errors.New("approval request already processed")
	ErrQuotaExceeded       = errors.New("plan quota exceeded")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrApprovalExecution   = errors.New("approval action execution failed")
)

// ValidationError builds a field-level validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// NotFoundError builds a missing-resource failure.
func NotFoundError(resource string) error {
	return fmt.Errorf("%s: %w", resource, ErrNotFound)
}

// TransitionError records a rejected state-machine edge.
func TransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// QuotaError records which resource would breach its plan limit.
func QuotaError(resource string, limit, current, proposed int) error {
	return fmt.Errorf("%w: %s limit %d, have %d, requested %d", ErrQuotaExceeded, resource, limit, current, proposed)
}

// HTTPStatus maps a billing error to the status code surfaced at the
// request boundary. ErrApprovalExecution is the one internal
// inconsistency; everything else is a client-correctable failure.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidInvoiceState),
		errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, ErrApprovalExecution):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

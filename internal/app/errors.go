package app

import (
	"errors"
	"fmt"
	"net/http"

	"aula/api/internal/content"
	"aula/api/internal/export"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func unavailable(feature string) *DomainError {
	return domainError(http.StatusServiceUnavailable, "UNAVAILABLE", feature+" is not configured", nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var transitionErr *content.TransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, "INVALID_STATE_TRANSITION", transitionErr.Error(), map[string]any{
			"from":      transitionErr.From,
			"to":        transitionErr.To,
			"operation": string(transitionErr.Operation),
		}
	}
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, content.ErrConcurrentModification):
		return http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error(), nil
	case errors.Is(err, content.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error(), nil
	case errors.Is(err, content.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, content.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// errorCode is the code mapError would report for err, used as a metric label.
func errorCode(err error) string {
	_, code, _, _ := mapError(err)
	return code
}

package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes returned in the JSON error envelope.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeConflict            = "CONFLICT"
	CodeGuardViolation      = "GUARD_VIOLATION"
	CodeStaleState          = "STALE_STATE"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeUnavailable         = "UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewPermissionDenied reports a write the store refused for the actor.
func NewPermissionDenied(err error) error {
	return &DomainError{
		Code:       CodePermissionDenied,
		Message:    "the store rejected this write for your role",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewGuardViolation reports a rejected lifecycle transition. reason is shown to users as is.
func NewGuardViolation(reasonCode, reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason_code"] = reasonCode
	details["reason"] = reason
	return NewDomainError(CodeGuardViolation, reason, http.StatusConflict, details)
}

// NewStaleState reports a compare-and-swap write that lost to a concurrent change.
func NewStaleState(err error) error {
	return &DomainError{
		Code:       CodeStaleState,
		Message:    "the doubt was changed by someone else, reload and try again",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewDuplicateSubmission(key string) error {
	return NewDomainError(CodeDuplicateSubmission, "this request was already submitted", http.StatusConflict, map[string]any{"idempotency_key": key})
}

// NewUnavailable wraps a transient store or network failure. Callers re-invoke; nothing retries.
func NewUnavailable(err error) error {
	return &DomainError{
		Code:       CodeUnavailable,
		Message:    "service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUnavailable(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// HasCode reports whether err maps to the given code.
func HasCode(err error, code string) bool {
	de := ToDomainError(err)
	return de != nil && de.Code == code
}

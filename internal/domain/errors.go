package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable refusal reasons. Clients branch on these, so
// the strings are part of the API contract.
const (
	ReasonUnauthenticated           = "UNAUTHENTICATED"
	ReasonInactiveUser              = "INACTIVE_USER"
	ReasonUpgradeRequired           = "UPGRADE_REQUIRED"
	ReasonForbiddenAdmin            = "FORBIDDEN_ADMIN"
	ReasonWebhookSignatureInvalid   = "WEBHOOK_SIGNATURE_INVALID"
	ReasonWebhookMissingCorrelation = "WEBHOOK_MISSING_CORRELATION"
)

// AppError is a structured application error with HTTP status code and an
// optional stable refusal reason. Errors without a reason are transient or
// internal; errors with one are refusals and must never be retried.
type AppError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Refusal reports whether the error is a deterministic client refusal
// rather than a transient failure.
func (e *AppError) Refusal() bool {
	return e.Reason != "" || e.Code < http.StatusInternalServerError
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: ReasonUnauthenticated, Message: msg}
}

func ErrInactiveUser() *AppError {
	return &AppError{Code: http.StatusForbidden, Reason: ReasonInactiveUser, Message: "user account is inactive"}
}

func ErrUpgradeRequired() *AppError {
	return &AppError{Code: http.StatusPaymentRequired, Reason: ReasonUpgradeRequired, Message: "active subscription required"}
}

func ErrForbiddenAdmin() *AppError {
	return &AppError{Code: http.StatusForbidden, Reason: ReasonForbiddenAdmin, Message: "admin access required"}
}

func ErrWebhookSignature() *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: ReasonWebhookSignatureInvalid, Message: "invalid webhook signature"}
}

func ErrWebhookCorrelation() *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: ReasonWebhookMissingCorrelation, Message: "webhook payload carries no user correlation"}
}

func ErrUnavailable(msg string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

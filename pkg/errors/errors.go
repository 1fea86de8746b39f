package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrForbidden          = errors.New("forbidden")
	ErrProvider           = errors.New("payment provider error")
	ErrDisbursementFailed = errors.New("disbursement failed")
	ErrAlreadyDisbursed   = errors.New("loan already disbursed")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrLockUnavailable    = errors.New("lock unavailable")
)

// ProviderErrorKind classifies failures reported by external payment providers.
type ProviderErrorKind string

const (
	ProviderDeclined  ProviderErrorKind = "declined"
	ProviderNotFound  ProviderErrorKind = "not_found"
	ProviderTransient ProviderErrorKind = "transient"
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error

	// Fields carries field-level messages for validation errors.
	Fields map[string]string
	// Kind is only set for PROVIDER_ERROR.
	Kind ProviderErrorKind
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Retriable reports whether the caller may repeat the same operation unchanged.
func (e *BusinessError) Retriable() bool {
	switch e.Code {
	case ErrCodeDisbursementFailed, ErrCodeLockUnavailable:
		return true
	case ErrCodeProviderError:
		return e.Kind == ProviderTransient
	}
	return false
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeDisbursementFailed = "DISBURSEMENT_FAILED"
	ErrCodeAlreadyDisbursed   = "ALREADY_DISBURSED"
	ErrCodeLoanNotFound       = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeLockUnavailable    = "LOCK_UNAVAILABLE"
)

// As extracts a *BusinessError from err.
func As(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// CodeOf returns the business error code of err, or "" for foreign errors.
func CodeOf(err error) string {
	if be, ok := As(err); ok {
		return be.Code
	}
	return ""
}

// Is is a shorthand for the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// WrapValidation builds a VALIDATION_ERROR carrying one message per field.
func WrapValidation(fields map[string]string) *BusinessError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}

	be := NewBusinessError(ErrCodeValidation, strings.Join(parts, "; "), ErrValidation)
	be.Fields = fields
	return be
}

// WrapFieldError is WrapValidation for a single field.
func WrapFieldError(field, message string) *BusinessError {
	return WrapValidation(map[string]string{field: message})
}

func WrapInvalidTransition(from, event string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("cannot %s a loan in status %s", event, from),
		ErrInvalidTransition,
	)
}

// WrapInvalidState reports a guard failure that is not a status change,
// e.g. verifying a payment twice.
func WrapInvalidState(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidTransition, message, ErrInvalidTransition)
}

func WrapForbidden(action string) *BusinessError {
	return NewBusinessError(
		ErrCodeForbidden,
		fmt.Sprintf("not allowed to %s", action),
		ErrForbidden,
	)
}

// WrapProviderError keeps the provider message verbatim so it can be shown to the applicant.
func WrapProviderError(kind ProviderErrorKind, providerMessage string, cause error) *BusinessError {
	err := ErrProvider
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrProvider, cause)
	}
	be := NewBusinessError(ErrCodeProviderError, providerMessage, err)
	be.Kind = kind
	return be
}

func WrapDisbursementFailed(reference string, err error) *BusinessError {
	cause := ErrDisbursementFailed
	if err != nil {
		cause = fmt.Errorf("%w: %v", ErrDisbursementFailed, err)
	}
	return NewBusinessError(
		ErrCodeDisbursementFailed,
		fmt.Sprintf("disbursement for loan %s could not reach the banking rail, retry later", reference),
		cause,
	)
}

func WrapAlreadyDisbursed(reference string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyDisbursed,
		fmt.Sprintf("Loan %s has already been disbursed", reference),
		ErrAlreadyDisbursed,
	)
}

func WrapLoanNotFound(loanID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %d not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanReferenceNotFound(reference string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with reference %s not found", reference),
		ErrLoanNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapLockUnavailable(key string, err error) *BusinessError {
	cause := ErrLockUnavailable
	if err != nil {
		cause = fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	return NewBusinessError(
		ErrCodeLockUnavailable,
		fmt.Sprintf("could not acquire lock %s", key),
		cause,
	)
}

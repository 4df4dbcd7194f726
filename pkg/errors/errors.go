// Package errors provides the unified error type and factory functions for
// the SignalWeave platform.  Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information, enabling consistent HTTP responses, logging, and monitoring.
//
// The platform error taxonomy maps onto four families of codes:
//
//	Validation:             malformed input, rejected immediately, never retried
//	TransientService:       external embedding/generation outage, retried with backoff
//	ContractViolation:      a theme/alert candidate failed a structural rule, dropped
//	ConcurrentModification: a quality-review compare-and-set lost the race
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		// Trim standard-library noise to keep traces readable.
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used throughout SignalWeave.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across all layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeThemeNotFound, "theme thm-01HX… not found")
//	return errors.Wrap(repoErr, errors.ErrCodeDatabaseError, "failed to load theme")
//	return errors.Validation("response text must not be empty").WithDetail("response_id=" + id)
type AppError struct {
	// Code is the typed error code that uniquely identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error, suitable
	// for inclusion in API responses returned to callers.
	Message string

	// Detail carries supplementary context (entity IDs, thresholds, rule names)
	// that aids debugging without leaking sensitive internals to end users.
	Detail string

	// Cause is the underlying error, enabling errors.Is / errors.As traversal.
	Cause error

	// Stack contains the formatted call stack captured at creation time.  It is
	// intentionally excluded from Error() output; structured-logging middleware
	// reads the field directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted when empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
// Preferred for errors that originate in the current layer without an
// underlying cause from a lower layer.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline:
//
//	return errors.Wrap(repo.FindByID(ctx, id), errors.ErrCodeDatabaseError, "query failed")
//
// When err is already an *AppError and code is ErrCodeInternal the original
// code is preserved, preventing loss of the original domain classification
// during cross-layer propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == ErrCodeInternal {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain.  If no *AppError is present, ErrCodeInternal is returned.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrorCode("OK")
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}

// Validation constructs a generic validation AppError.  Malformed input is
// rejected immediately and never retried.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Transient constructs a TransientService AppError for external-service
// outages.  Callers retry with bounded backoff; exhausted retries degrade the
// item to a pending status instead of failing the batch.
func Transient(message string) *AppError {
	return &AppError{
		Code:    ErrCodeTransientService,
		Message: message,
		Stack:   captureStack(1),
	}
}

// ContractViolation constructs an AppError for a theme/alert candidate that
// failed a structural or content rule.  The candidate is dropped, never
// auto-corrected.
func ContractViolation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeContractViolation,
		Message: message,
		Stack:   captureStack(1),
	}
}

// ConcurrentModification constructs an AppError for a lost compare-and-set
// race.  It is surfaced to the caller to retry with fresh state, never
// silently overwritten.
func ConcurrentModification(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConcurrentModification,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs an ErrCodeInternal AppError.  Use for unexpected
// server-side failures where no more specific code applies.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// IsValidation reports whether err belongs to the validation family
// (common validation plus module-specific LBL/CNT input codes).
func IsValidation(err error) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			switch ModuleForCode(ae.Code) {
			case "LBL":
				return true
			}
			switch ae.Code {
			case ErrCodeValidation, ErrCodeBadRequest, ErrCodeDanglingFinding:
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsTransient reports whether any error in err's chain carries a transient
// service code, i.e. whether a retry with backoff is appropriate.
func IsTransient(err error) bool {
	return IsCode(err, ErrCodeTransientService) ||
		IsCode(err, ErrCodeServiceUnavailable) ||
		IsCode(err, ErrCodeTimeout) ||
		IsCode(err, ErrCodeEmbeddingUnavailable)
}

// IsContractViolation reports whether err carries any contract-rule code.
func IsContractViolation(err error) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ModuleForCode(ae.Code) == "CNT" {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsConcurrentModification reports whether err is a lost CAS race.
func IsConcurrentModification(err error) bool {
	return IsCode(err, ErrCodeConcurrentModification)
}

// IsNotFound reports whether any error in err's chain is a not-found variant.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) ||
		IsCode(err, ErrCodeThemeNotFound) ||
		IsCode(err, ErrCodeBatchNotFound)
}

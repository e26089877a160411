package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError. The set is closed; transports branch
// on it to choose a wire representation.
type ErrorKind string

const (
	KindInvalidToken       ErrorKind = "invalid_token"
	KindSessionNotFound    ErrorKind = "session_not_found"
	KindBackendFailure     ErrorKind = "backend_failure"
	KindResourceExhaustion ErrorKind = "resource_exhaustion"
	KindInvalidArgument    ErrorKind = "invalid_argument"
	KindInternal           ErrorKind = "internal"
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string { return string(k) }

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Code    string    // Error code (e.g., "KG-SESS-4040")
	Kind    ErrorKind // Error classification
	Message string    // Human-readable message
	Details string    // Optional additional details
	Cause   error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code, kind and message.
func NewDomainError(code string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetailsf is WithDetails with formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the kind of the first DomainError in err's chain.
// Errors that are not DomainErrors are KindInternal; nil has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrInvalidToken indicates a malformed token or a checksum mismatch.
	// The two cases are deliberately not distinguished.
	ErrInvalidToken = NewDomainError("KG-TOKN-4010", KindInvalidToken, "invalid session token")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates a valid token with no live session. It
	// covers both never-created and already-closed sessions.
	ErrSessionNotFound = NewDomainError("KG-SESS-4040", KindSessionNotFound, "session not found")
)

// ============================================================================
// Kernel Errors (KERN)
// ============================================================================

var (
	// ErrKernelOpen indicates the backend failed to start a session.
	ErrKernelOpen = NewDomainError("KG-KERN-5020", KindBackendFailure, "kernel failed to start session")

	// ErrKernelEvaluate indicates the backend failed to evaluate code.
	ErrKernelEvaluate = NewDomainError("KG-KERN-5021", KindBackendFailure, "kernel evaluation failed")

	// ErrKernelTerminate indicates the backend failed to terminate a session.
	ErrKernelTerminate = NewDomainError("KG-KERN-5022", KindBackendFailure, "kernel failed to terminate session")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("KG-SYS-5000", KindInternal, "internal server error")

	// ErrResourceExhausted indicates the random source or backend capacity
	// was unavailable when creating a session.
	ErrResourceExhausted = NewDomainError("KG-SYS-5030", KindResourceExhaustion, "resources exhausted")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("KG-ARG-1001", KindInvalidArgument, "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("KG-ARG-1002", KindInvalidArgument, "missing required argument")
)

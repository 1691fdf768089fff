package shared

import "fmt"

// ErrorKind classifies a domain error independently of its specific code.
// The HTTP layer maps kinds to status codes.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindNotAuthorized   ErrorKind = "NOT_AUTHORIZED"
	KindInvalidState    ErrorKind = "INVALID_STATE"
	KindConflict        ErrorKind = "CONFLICT"
	KindExternalFailure ErrorKind = "EXTERNAL_FAILURE"
	KindValidation      ErrorKind = "VALIDATION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind         `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches sentinel errors by kind so that errors.Is(err, ErrNotFound)
// holds for every not-found code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Kind != "" && t.Code == string(t.Kind) && t.Kind == e.Kind
}

// WithReason returns a copy of the error carrying a machine readable reason
func (e *DomainError) WithReason(reason string) *DomainError {
	cp := *e
	cp.Reason = reason
	return &cp
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key, value string) *DomainError {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy of the error wrapping cause
func (e *DomainError) Wrap(cause error) *DomainError {
	cp := *e
	cp.cause = cause
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Kind sentinels. Every DomainError of the same kind matches these via errors.Is.
var (
	ErrNotFound        = NewDomainError(KindNotFound, string(KindNotFound), "Resource not found")
	ErrNotAuthorized   = NewDomainError(KindNotAuthorized, string(KindNotAuthorized), "Not authorized to perform this action")
	ErrInvalidState    = NewDomainError(KindInvalidState, string(KindInvalidState), "Operation not allowed in current state")
	ErrConflict        = NewDomainError(KindConflict, string(KindConflict), "Operation conflicts with current state")
	ErrExternalFailure = NewDomainError(KindExternalFailure, string(KindExternalFailure), "External service failed")
	ErrValidation      = NewDomainError(KindValidation, string(KindValidation), "Invalid input provided")
)

package dto

import (
	"errors"
	"net/http"

	"github.com/groupbuy/backend/internal/domain/shared"
)

// Transport level error codes. Domain errors keep their own codes
// (GROUP_NOT_FOUND, CHECKOUT_BLOCKED, ...).
const (
	ErrCodeInternal       = "ERR_INTERNAL"
	ErrCodeValidation     = "ERR_VALIDATION"
	ErrCodeBadRequest     = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON    = "ERR_INVALID_JSON"
	ErrCodeUnauthorized   = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired   = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid   = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked   = "ERR_TOKEN_REVOKED"
	ErrCodeForbidden      = "ERR_FORBIDDEN"
	ErrCodeNotFound       = "ERR_NOT_FOUND"
	ErrCodeRateLimited    = "ERR_RATE_LIMITED"
	ErrCodeBodyTooLarge   = "ERR_BODY_TOO_LARGE"
	ErrCodeTooManyStreams = "ERR_TOO_MANY_STREAMS"
	ErrCodeUnavailable    = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps transport error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeInvalidJSON:    http.StatusBadRequest,
	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeTokenExpired:   http.StatusUnauthorized,
	ErrCodeTokenInvalid:   http.StatusUnauthorized,
	ErrCodeTokenRevoked:   http.StatusUnauthorized,
	ErrCodeForbidden:      http.StatusForbidden,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeRateLimited:    http.StatusTooManyRequests,
	ErrCodeBodyTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeTooManyStreams: http.StatusServiceUnavailable,
	ErrCodeUnavailable:    http.StatusServiceUnavailable,
}

// KindHTTPStatus maps domain error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindNotFound:        http.StatusNotFound,
	shared.KindNotAuthorized:   http.StatusForbidden,
	shared.KindInvalidState:    http.StatusUnprocessableEntity,
	shared.KindConflict:        http.StatusConflict,
	shared.KindExternalFailure: http.StatusBadGateway,
	shared.KindValidation:      http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for a transport error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForKind returns the HTTP status for a domain error kind
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError converts err into a status and body. Domain errors keep their
// code, reason and details. Wrapped causes of external failures are not
// exposed; anything else is an internal error.
func FromError(err error, requestID string) (int, Response) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError,
			NewErrorResponseWithRequestID(ErrCodeInternal, "An unexpected error occurred", requestID)
	}
	resp := NewErrorResponseWithRequestID(de.Code, de.Message, requestID)
	resp.Error.Reason = de.Reason
	if len(de.Details) > 0 {
		resp.Error.Details = de.Details
	}
	return StatusForKind(de.Kind), resp
}

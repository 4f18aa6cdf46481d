package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components must use these instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat   ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon   ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"

	// Permission (403)
	ErrCodePermissionDenied ErrorCode = "permission_denied_location"

	// Not Found (404)
	ErrCodeNotFoundLocation ErrorCode = "not_found_location"

	// Location acquisition (503)
	ErrCodeLocationUnavailable ErrorCode = "location_unavailable"

	// Internal/Upstream (500/502)
	ErrCodeInternalStorage    ErrorCode = "internal_storage_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamNetwork    ErrorCode = "upstream_network_error"
	ErrCodeUpstreamHTTPStatus ErrorCode = "upstream_http_status"
	ErrCodeUpstreamDecode     ErrorCode = "upstream_decode_error"
)

// DetailStatus is the Details key carrying the upstream HTTP status code on
// ErrCodeUpstreamHTTPStatus errors.
const DetailStatus = "status"

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case c == ErrCodeLocationUnavailable:
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout SkyCast.
// Domain errors are expressed as AppError so the CLI and the API can format
// them and map them to exit codes or HTTP statuses consistently.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewHTTPStatusError reports a non-2xx upstream response. The status code is
// carried in Details[DetailStatus].
func NewHTTPStatusError(status int, body string) *AppError {
	msg := fmt.Sprintf("upstream returned %d", status)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &AppError{
		Code:    ErrCodeUpstreamHTTPStatus,
		Message: msg,
		Details: map[string]any{DetailStatus: status},
	}
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err's chain contains an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatusOf extracts the upstream status from an ErrCodeUpstreamHTTPStatus
// error. The second return value is false for any other error.
func HTTPStatusOf(err error) (int, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != ErrCodeUpstreamHTTPStatus {
		return 0, false
	}
	status, ok := appErr.Details[DetailStatus].(int)
	return status, ok
}

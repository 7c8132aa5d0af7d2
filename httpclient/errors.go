package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors raised by the refresh flow
var (
	// ErrNoRefreshToken means the token store holds no refresh token, so no refresh call is made
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshRejected means the refresh endpoint answered with a non-2xx status
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrMalformedTokens means the refresh endpoint answered 2xx without a usable token pair
	ErrMalformedTokens = errors.New("refresh response carried no access token")
	// ErrRefreshUnavailable means the refresh call got no response at all
	ErrRefreshUnavailable = errors.New("refresh endpoint unreachable")
	// ErrTokenStore means the refreshed pair could not be persisted
	ErrTokenStore = errors.New("token store write failed")
)

// ClientError is the transport-level failure produced by a single attempt.
// Terminal failures reach callers wrapped in a *NormalizedError.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// networkError wraps transport failures where no response was received
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }

func (e *networkError) Unwrap() error { return e.wrapped }

// timeoutError is a network failure caused by the attempt running out of time
type timeoutError struct {
	message string
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

func (e *timeoutError) Unwrap() error { return e.wrapped }

// httpError is a completed exchange with a non-2xx status
type httpError struct {
	message    string
	statusCode int
	body       []byte
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType { return HTTPError }

func (e *httpError) StatusCode() int { return e.statusCode }

func (e *httpError) Body() []byte { return e.body }

// validationError rejects a request before anything is sent
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }

// interceptorError reports an interceptor that refused the request or response
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }

func (e *interceptorError) Unwrap() error { return e.wrapped }

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{message: message, wrapped: wrapped}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{message: message, timeout: timeout}
}

func newTimeoutErrorFrom(message string, timeout time.Duration, cause error) ClientError {
	return &timeoutError{message: message, timeout: timeout, wrapped: cause}
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{message: message, wrapped: wrapped, stage: stage}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// refreshError carries the HTTP outcome of a failed refresh call, when there was one.
type refreshError struct {
	reason error
	cause  error
	resp   *Response
	path   string
}

func (e *refreshError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token refresh failed: %v: %v", e.reason, e.cause)
	}
	return fmt.Sprintf("token refresh failed: %v", e.reason)
}

func (e *refreshError) Is(target error) bool { return target == e.reason }

func (e *refreshError) Unwrap() error { return e.cause }

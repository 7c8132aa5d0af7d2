package httpclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConnectionFailed = "connection failed"

// TestErrorTypeFormatting tests the Error() method behavior per error type
func TestErrorTypeFormatting(t *testing.T) {
	tests := []struct {
		name     string
		error    ClientError
		contains []string
	}{
		{
			name:     "network error without wrapped error",
			error:    NewNetworkError(testConnectionFailed, nil),
			contains: []string{"network error", testConnectionFailed},
		},
		{
			name:     "network error with wrapped error",
			error:    NewNetworkError(testConnectionFailed, errors.New("connection reset by peer")),
			contains: []string{"network error", testConnectionFailed, "connection reset by peer"},
		},
		{
			name:     "timeout error",
			error:    NewTimeoutError("request timeout", 30*time.Second),
			contains: []string{"timeout error", "request timeout", "30s"},
		},
		{
			name:     "http error",
			error:    NewHTTPError("bad request", 400, []byte("invalid input")),
			contains: []string{"HTTP error", "bad request", "400"},
		},
		{
			name:     "validation error with field",
			error:    NewValidationError("URL cannot be empty", "url"),
			contains: []string{"validation error", "URL cannot be empty", "url"},
		},
		{
			name:     "validation error without field",
			error:    NewValidationError("invalid request", ""),
			contains: []string{"validation error", "invalid request"},
		},
		{
			name:     "interceptor error",
			error:    NewInterceptorError("processing failed", "request", errors.New("signing error")),
			contains: []string{"interceptor error", "processing failed", "request", "signing error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errorMsg := tt.error.Error()
			for _, expected := range tt.contains {
				assert.Contains(t, errorMsg, expected, "Error message should contain: %s", expected)
			}
		})
	}
}

// TestErrorTypeIdentification tests the Type() method for each error type
func TestErrorTypeIdentification(t *testing.T) {
	tests := []struct {
		error    ClientError
		expected ErrorType
	}{
		{error: NewNetworkError("test", nil), expected: NetworkError},
		{error: NewTimeoutError("test", time.Second), expected: TimeoutError},
		{error: NewHTTPError("test", 500, nil), expected: HTTPError},
		{error: NewValidationError("test", "field"), expected: ValidationError},
		{error: NewInterceptorError("test", "stage", nil), expected: InterceptorError},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Type())
		})
	}
}

// TestErrorUnwrapping tests Unwrap() implementations and error chaining
func TestErrorUnwrapping(t *testing.T) {
	t.Run("network error unwrapping", func(t *testing.T) {
		underlyingErr := errors.New("connection refused")
		netErr := NewNetworkError("failed to connect", underlyingErr)

		assert.True(t, errors.Is(netErr, underlyingErr))

		var target *networkError
		require.True(t, errors.As(netErr, &target))
		assert.Equal(t, "failed to connect", target.message)
	})

	t.Run("timeout error keeps its cause", func(t *testing.T) {
		timeoutErr := newTimeoutErrorFrom("request timeout", time.Second, context.DeadlineExceeded)

		assert.True(t, errors.Is(timeoutErr, context.DeadlineExceeded))
		assert.True(t, IsErrorType(timeoutErr, TimeoutError))
	})

	t.Run("interceptor error unwrapping", func(t *testing.T) {
		underlyingErr := errors.New("parsing failed")
		intErr := NewInterceptorError("interceptor failed", "request", underlyingErr)

		assert.True(t, errors.Is(intErr, underlyingErr))

		var target *interceptorError
		require.True(t, errors.As(intErr, &target))
		assert.Equal(t, "request", target.stage)
	})
}

// TestHTTPErrorBodyAccess tests the Body() and StatusCode() accessors of httpError
func TestHTTPErrorBodyAccess(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: []byte{}},
		{name: "nil body", body: nil},
		{name: "json body", body: []byte(`{"statusCode":503,"message":"maintenance"}`)},
		{name: "text body", body: []byte("Service Unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := NewHTTPError("test error", 503, tt.body)

			accessor, ok := httpErr.(interface {
				Body() []byte
				StatusCode() int
			})
			require.True(t, ok, "httpError should expose Body() and StatusCode()")
			assert.Equal(t, tt.body, accessor.Body())
			assert.Equal(t, 503, accessor.StatusCode())
		})
	}
}

// TestErrorTypeUtilities tests the utility functions for error type checking
func TestErrorTypeUtilities(t *testing.T) {
	t.Run("IsErrorType function", func(t *testing.T) {
		tests := []struct {
			name      string
			error     error
			errorType ErrorType
			expected  bool
		}{
			{name: "nil error", error: nil, errorType: NetworkError, expected: false},
			{name: "network error matches", error: NewNetworkError("test", nil), errorType: NetworkError, expected: true},
			{name: "network error doesn't match timeout", error: NewNetworkError("test", nil), errorType: TimeoutError, expected: false},
			{name: "standard error doesn't match", error: errors.New("standard error"), errorType: NetworkError, expected: false},
			{
				name:      "wrapped client error matches",
				error:     fmt.Errorf("wrapper: %w", NewHTTPError("test", 400, nil)),
				errorType: HTTPError,
				expected:  true,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, IsErrorType(tt.error, tt.errorType))
			})
		}
	})

	t.Run("IsHTTPStatusError function", func(t *testing.T) {
		tests := []struct {
			name       string
			error      error
			statusCode int
			expected   bool
		}{
			{name: "nil error", error: nil, statusCode: 404, expected: false},
			{name: "http error with matching status", error: NewHTTPError("not found", 404, nil), statusCode: 404, expected: true},
			{name: "http error with different status", error: NewHTTPError("server error", 500, nil), statusCode: 404, expected: false},
			{name: "non-http error", error: NewNetworkError(testConnectionFailed, nil), statusCode: 404, expected: false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, IsHTTPStatusError(tt.error, tt.statusCode))
			})
		}
	})

	t.Run("IsSuccessStatus function", func(t *testing.T) {
		tests := []struct {
			statusCode int
			expected   bool
		}{
			{199, false},
			{200, true},
			{204, true},
			{299, true},
			{300, false},
			{401, false},
			{503, false},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
				assert.Equal(t, tt.expected, IsSuccessStatus(tt.statusCode))
			})
		}
	})
}

// TestRefreshErrorChain tests sentinel matching through a refresh failure
func TestRefreshErrorChain(t *testing.T) {
	httpErr := NewHTTPError("HTTP request failed with status 401", 401, nil)
	rerr := &refreshError{reason: ErrRefreshRejected, cause: httpErr}

	assert.True(t, errors.Is(rerr, ErrRefreshRejected))
	assert.False(t, errors.Is(rerr, ErrNoRefreshToken))
	assert.True(t, IsHTTPStatusError(rerr, 401))
	assert.Contains(t, rerr.Error(), "token refresh failed")

	noToken := &refreshError{reason: ErrNoRefreshToken}
	assert.True(t, errors.Is(noToken, ErrNoRefreshToken))
	assert.Nil(t, noToken.Unwrap())
	assert.Equal(t, "token refresh failed: no refresh token available", noToken.Error())
}

// TestErrorChaining tests complex error chaining scenarios
func TestErrorChaining(t *testing.T) {
	t.Run("normalized error reaches the client error", func(t *testing.T) {
		underlying := errors.New("socket closed")
		network := NewNetworkError("connection lost", underlying)
		nerr := normalize(&call{path: "/employees"}, &failure{err: network}, CategoryConnectivity, nil, time.Now())

		var asErr error = nerr
		assert.True(t, errors.Is(asErr, underlying))
		assert.True(t, IsErrorType(asErr, NetworkError))

		got, ok := AsNormalizedError(fmt.Errorf("load employees: %w", asErr))
		require.True(t, ok)
		assert.Same(t, nerr, got)
	})

	t.Run("refresh failure keeps sentinel and status", func(t *testing.T) {
		cause := &refreshError{reason: ErrRefreshRejected, cause: NewHTTPError("rejected", 401, nil)}
		nerr := normalize(&call{}, &failure{resp: &Response{StatusCode: 401}}, CategoryCredentialInvalid, cause, time.Now())

		assert.True(t, errors.Is(nerr, ErrRefreshRejected))
		assert.True(t, IsHTTPStatusError(nerr, 401))
	})
}

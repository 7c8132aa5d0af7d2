package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/akjtjhklf/fnb-hrms-client/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderAuthorization carries the bearer access token
	HeaderAuthorization = "Authorization"
	// DefaultOrgHeader carries the decrypted organization key
	DefaultOrgHeader = "X-Org-Key"
)

// Client defines the REST client interface for making HTTP requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request represents an HTTP request with all necessary data.
// URL may be absolute or a path relative to the configured base URL.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	// Attempts counts every dispatch of this call: the first send, retries and replays
	Attempts int
}

// TokenStore holds the three session tokens. Getters return "" when a token is absent.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	OrgToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
	ClearTokens(ctx context.Context) error
}

// OrgKeyDecrypter turns the stored organization token into the key sent upstream
type OrgKeyDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Redirector sends the user back to the login view once the session cannot be recovered
type Redirector interface {
	RedirectToLogin(ctx context.Context)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(ctx context.Context)

// RedirectToLogin calls f(ctx)
func (f RedirectFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Endpoints names the auth endpoints whose identity changes classification
type Endpoints struct {
	Login       string
	Refresh     string
	Logout      string
	CurrentUser string
}

// DefaultEndpoints returns the HRMS backend auth routes
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:       "/auth/login",
		Refresh:     "/auth/refresh-token",
		Logout:      "/auth/logout",
		CurrentUser: "/auth/me",
	}
}

// BackoffStrategy defines how delays grow between retries
type BackoffStrategy string

const (
	// BackoffLinear waits RetryDelay × attempt
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential waits RetryDelay × 2^(attempt-1)
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffConstant waits RetryDelay before every attempt
	BackoffConstant BackoffStrategy = "constant"
)

// RetryPolicy bounds the Retry Scheduler
type RetryPolicy struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Backoff       BackoffStrategy
	// RetryableStatuses lists the statuses treated as transient server failures
	RetryableStatuses []int
}

// Config holds the REST client configuration
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	Retry                RetryPolicy
	Endpoints            Endpoints
	OrgHeader            string
	RefreshTimeout       time.Duration
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	// DefaultHeaders are sent on every request, e.g. tunnel compatibility headers
	DefaultHeaders map[string]string
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for request ID propagation (default: X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates a new request ID when none is present (default: uuid)
	NewTraceID func() string
	// TraceIDExtractor allows advanced extraction of a request ID from context; return ok=false to fallback to generator
	TraceIDExtractor func(_ context.Context) (traceID string, ok bool)
}

// WithTraceID adds a request ID to the context for propagation on outgoing calls
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return trace.WithRequestID(ctx, traceID)
}

// TraceIDFromContext returns a request ID from context if present
func TraceIDFromContext(ctx context.Context) (string, bool) { return trace.RequestIDFromContext(ctx) }

// NewTraceIDInterceptor creates a request interceptor that adds the request ID header
// when the caller did not set one.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor creates an interceptor that uses a custom header name
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureRequestID(ctx))
		}
		return nil
	}
}

package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/akjtjhklf/fnb-hrms-client/logger"
	"github.com/akjtjhklf/fnb-hrms-client/trace"
)

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config        *Config
	logger        logger.Logger
	httpClient    *nethttp.Client
	transport     nethttp.RoundTripper
	tokens        TokenStore
	decrypter     OrgKeyDecrypter
	redirector    Redirector
	limiter       *rate.Limiter
	meterProvider metric.MeterProvider
	tracing       bool
	now           func() time.Time
}

// DefaultConfig returns the configuration used by NewBuilder
func DefaultConfig() *Config {
	return &Config{
		Timeout: DefaultTimeout,
		Retry: RetryPolicy{
			MaxRetries:        DefaultMaxRetries,
			RetryDelay:        DefaultRetryDelay,
			MaxRetryDelay:     DefaultMaxRetryDelay,
			Backoff:           BackoffLinear,
			RetryableStatuses: DefaultRetryableStatuses(),
		},
		Endpoints:            DefaultEndpoints(),
		OrgHeader:            DefaultOrgHeader,
		RefreshTimeout:       DefaultRefreshTimeout,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
		MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		TraceIDHeader:        HeaderXRequestID,
		NewTraceID:           trace.NewRequestID,
		TraceIDExtractor:     trace.RequestIDFromContext,
	}
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: DefaultConfig(),
		logger: log,
	}
}

// WithBaseURL sets the URL relative request paths are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry count and base delay
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	b.config.Retry.MaxRetries = maxRetries
	b.config.Retry.RetryDelay = retryDelay
	return b
}

// WithRetryPolicy replaces the whole retry policy. An empty Backoff, a zero MaxRetryDelay and an
// empty RetryableStatuses keep the current values; every other field is taken as given.
func (b *Builder) WithRetryPolicy(policy RetryPolicy) *Builder {
	if policy.Backoff == "" {
		policy.Backoff = b.config.Retry.Backoff
	}
	if policy.MaxRetryDelay == 0 {
		policy.MaxRetryDelay = b.config.Retry.MaxRetryDelay
	}
	if len(policy.RetryableStatuses) == 0 {
		policy.RetryableStatuses = b.config.Retry.RetryableStatuses
	}
	b.config.Retry = policy
	return b
}

// WithEndpoints sets the auth endpoints. Empty fields keep their defaults.
func (b *Builder) WithEndpoints(endpoints Endpoints) *Builder {
	defaults := DefaultEndpoints()
	if endpoints.Login == "" {
		endpoints.Login = defaults.Login
	}
	if endpoints.Refresh == "" {
		endpoints.Refresh = defaults.Refresh
	}
	if endpoints.Logout == "" {
		endpoints.Logout = defaults.Logout
	}
	if endpoints.CurrentUser == "" {
		endpoints.CurrentUser = defaults.CurrentUser
	}
	b.config.Endpoints = endpoints
	return b
}

// WithTokenStore sets the credential store consulted on every attempt
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithOrgKeyDecrypter sets the strategy turning the org token into the org header value
func (b *Builder) WithOrgKeyDecrypter(decrypter OrgKeyDecrypter) *Builder {
	b.decrypter = decrypter
	return b
}

// WithOrgHeader sets the header carrying the organization key
func (b *Builder) WithOrgHeader(header string) *Builder {
	if header != "" {
		b.config.OrgHeader = header
	}
	return b
}

// WithRedirector sets the hook invoked once a session cannot be recovered
func (b *Builder) WithRedirector(redirector Redirector) *Builder {
	b.redirector = redirector
	return b
}

// WithRefreshTimeout bounds the refresh and logout calls
func (b *Builder) WithRefreshTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.config.RefreshTimeout = timeout
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor. User interceptors run after the
// credential augmenter.
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithHTTPClient uses a preconfigured http.Client. Its Timeout wins unless it is zero.
func (b *Builder) WithHTTPClient(client *nethttp.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTransport sets the round tripper of the built http.Client
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.transport = transport
	return b
}

// WithTraceIDHeader sets the header used for request ID propagation
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	if header != "" {
		b.config.TraceIDHeader = header
	}
	return b
}

// WithTraceIDGenerator sets the request ID generator
func (b *Builder) WithTraceIDGenerator(generator func() string) *Builder {
	if generator != nil {
		b.config.NewTraceID = generator
	}
	return b
}

// WithTraceIDExtractor sets how a request ID is read from the caller's context
func (b *Builder) WithTraceIDExtractor(extractor func(context.Context) (string, bool)) *Builder {
	if extractor != nil {
		b.config.TraceIDExtractor = extractor
	}
	return b
}

// WithPayloadLogging enables debug logging of headers and body previews
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithRateLimit throttles dispatches to rps requests per second with the given burst.
// Retries and replays count against the same budget.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	if rps <= 0 {
		b.limiter = nil
		return b
	}
	if burst < 1 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return b
}

// WithMeterProvider sets the provider for client metrics (default: global provider)
func (b *Builder) WithMeterProvider(provider metric.MeterProvider) *Builder {
	b.meterProvider = provider
	return b
}

// WithTracing wraps the transport with OpenTelemetry client spans
func (b *Builder) WithTracing(enabled bool) *Builder {
	b.tracing = enabled
	return b
}

// WithClock overrides the clock used for error timestamps
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	// Build works on a copy; the caller's client is never mutated
	httpClient := &nethttp.Client{Timeout: b.config.Timeout}
	if b.httpClient != nil {
		hc := *b.httpClient
		httpClient = &hc
		if httpClient.Timeout == 0 {
			httpClient.Timeout = b.config.Timeout
		}
	}

	if b.transport != nil {
		httpClient.Transport = b.transport
	}
	if b.tracing {
		base := httpClient.Transport
		if base == nil {
			base = nethttp.DefaultTransport
		}
		httpClient.Transport = otelhttp.NewTransport(base)
	}

	tokens := b.tokens
	if tokens == nil {
		tokens = noTokens{}
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &client{
		httpClient:           httpClient,
		logger:               b.logger,
		config:               b.config,
		tokens:               tokens,
		decrypter:            b.decrypter,
		redirector:           b.redirector,
		limiter:              b.limiter,
		metrics:              newClientMetrics(b.meterProvider),
		responseInterceptors: b.config.ResponseInterceptors,
		now:                  now,
	}
	c.requestInterceptors = append([]RequestInterceptor{c.newAugmenter()}, b.config.RequestInterceptors...)
	return c
}

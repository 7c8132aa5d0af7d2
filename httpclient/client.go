package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/akjtjhklf/fnb-hrms-client/logger"
	"github.com/akjtjhklf/fnb-hrms-client/trace"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default maximum number of retries for transient failures
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay between retries
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps a single backoff wait
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultRefreshTimeout bounds the refresh and logout calls
	DefaultRefreshTimeout = 15 * time.Second
)

// DefaultRetryableStatuses are the statuses treated as transient server failures
func DefaultRetryableStatuses() []int {
	return []int{
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout,
	}
}

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	tokens               TokenStore
	decrypter            OrgKeyDecrypter
	redirector           Redirector
	limiter              *rate.Limiter
	metrics              *clientMetrics
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	now                  func() time.Time
	refresh              refreshState
	callCount            int64
}

// call describes one logical API call across all of its attempts. Every attempt rebuilds the
// *http.Request from it, so body and caller headers are reused unchanged.
type call struct {
	method    string
	url       string
	path      string
	headers   map[string]string
	body      []byte
	requestID string
	// retried flips to true once, when the call goes through the refresh route
	retried bool
	// sentAuth and generation describe the credentials the latest attempt went out with
	sentAuth   string
	generation uint64
	retryCount int
	attempts   int
	start      time.Time
	callCount  int64
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method.
//
// Failed attempts are classified: an expired access token goes through the refresh route,
// transient failures through the retry route, everything else is terminal and returned as a
// *NormalizedError together with the last response, if any.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	rc, err := c.newCall(method, req, c.requestIDFor(ctx))
	if err != nil {
		return nil, err
	}

	ack := noAck
	for {
		resp, f := c.send(ctx, rc, ack)
		ack = noAck
		if f == nil {
			c.metrics.request(ctx, rc.method, "success")
			return resp, nil
		}

		d := classify(c.config, rc, f)
		switch d.route {
		case routeRefresh:
			next, nerr := c.handleRefresh(ctx, rc, f)
			if nerr != nil {
				return c.fail(ctx, rc, resp, nerr, d.reason)
			}
			ack = next
		case routeRetry:
			if err := c.scheduleRetry(ctx, rc, f); err != nil {
				nerr := normalize(rc, f, categoryOf(f), errors.Join(f.err, err), c.now())
				return c.fail(ctx, rc, resp, nerr, reasonCancelled)
			}
		default:
			return c.fail(ctx, rc, resp, normalize(rc, f, d.category, nil, c.now()), d.reason)
		}
	}
}

// fail records a terminal failure
func (c *client) fail(ctx context.Context, rc *call, resp *Response, nerr *NormalizedError, reason string) (*Response, error) {
	c.metrics.request(ctx, rc.method, "failure")
	c.metrics.failure(ctx, nerr.Category)

	c.logger.Warn().
		Str("request_id", rc.requestID).
		Str("method", rc.method).
		Str("path", rc.path).
		Int("status", nerr.StatusCode).
		Str("category", string(nerr.Category)).
		Str("reason", reason).
		Int("attempts", rc.attempts).
		Msg("REST client request failed")
	return resp, nerr
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

// requestIDFor resolves the call's request ID: extractor, then context, then generator
func (c *client) requestIDFor(ctx context.Context) string {
	if c.config.TraceIDExtractor != nil {
		if id, ok := c.config.TraceIDExtractor(ctx); ok && id != "" {
			return id
		}
	}
	if id, ok := trace.RequestIDFromContext(ctx); ok {
		return id
	}
	return c.config.NewTraceID()
}

// newCall resolves req against the base URL. A caller-supplied request ID header wins over requestID.
func (c *client) newCall(method string, req *Request, requestID string) (*call, error) {
	target := c.resolveURL(req.URL)
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, NewValidationError(fmt.Sprintf("invalid URL %q", req.URL), "url")
	}

	headers := make(map[string]string, len(req.Headers))
	for key, value := range req.Headers {
		headers[key] = value
		if strings.EqualFold(key, c.config.TraceIDHeader) && value != "" {
			requestID = value
		}
	}
	if requestID == "" {
		requestID = c.config.NewTraceID()
	}

	return &call{
		method:    method,
		url:       target,
		path:      u.Path,
		headers:   headers,
		body:      req.Body,
		requestID: requestID,
		start:     time.Now(),
		callCount: atomic.AddInt64(&c.callCount, 1),
	}, nil
}

func (c *client) resolveURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") || c.config.BaseURL == "" {
		return raw
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(raw, "/")
}

// send performs one attempt without classifying it. ack is called once the request is
// about to be handed to the transport, or when the attempt ends before that.
func (c *client) send(ctx context.Context, rc *call, ack func()) (*Response, *failure) {
	defer ack()

	httpReq, buildErr := c.buildRequest(ctx, rc)
	if buildErr != nil {
		return nil, &failure{err: buildErr, ctxErr: ctx.Err()}
	}
	rc.sentAuth = httpReq.Header.Get(HeaderAuthorization)
	rc.generation = c.refresh.currentGeneration()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &failure{err: NewNetworkError("rate limiter wait aborted", err), ctxErr: ctx.Err()}
		}
	}

	c.logRequest(httpReq, rc.body, rc.requestID)
	rc.attempts++
	ack()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportFailure(ctx, err)
	}

	resp, readErr := c.buildResponse(ctx, rc, httpReq, httpResp)
	if readErr != nil {
		return nil, &failure{err: readErr, ctxErr: ctx.Err()}
	}
	c.logResponse(resp, rc.path, rc.requestID)

	if IsSuccessStatus(resp.StatusCode) {
		return resp, nil
	}
	return resp, &failure{
		resp: resp,
		err: NewHTTPError(
			fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
			resp.StatusCode,
			resp.Body,
		),
	}
}

// transportFailure maps an http.Client error. Errors seen after the caller's context ended
// are never transient.
func (c *client) transportFailure(ctx context.Context, err error) *failure {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &failure{err: newTimeoutErrorFrom("request deadline exceeded", c.config.Timeout, err), ctxErr: ctxErr}
		}
		return &failure{err: NewNetworkError("request aborted", err), ctxErr: ctxErr}
	}
	if c.isTimeout(err) {
		return &failure{err: newTimeoutErrorFrom("request timeout", c.config.Timeout, err)}
	}
	return &failure{err: NewNetworkError("request execution failed", err)}
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(httpReq *nethttp.Request, rc *call) {
	// Apply default headers first
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range rc.headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get(c.config.TraceIDHeader) == "" {
		httpReq.Header.Set(c.config.TraceIDHeader, rc.requestID)
	}

	// Set Content-Type if not already set and body is present
	if httpReq.Header.Get("Content-Type") == "" && rc.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
}

// buildRequest constructs an *http.Request, applies headers, and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, rc *call) (*nethttp.Request, ClientError) {
	var body io.Reader
	if rc.body != nil {
		body = bytes.NewReader(rc.body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, rc.method, rc.url, body)
	if err != nil {
		return nil, NewNetworkError("failed to create HTTP request", err)
	}

	c.applyHeaders(httpReq, rc)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
func (c *client) buildResponse(ctx context.Context, rc *call, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, ClientError) {
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(rc.start),
			CallCount:   rc.callCount,
			Attempts:    rc.attempts,
		},
	}, nil
}

func (c *client) isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

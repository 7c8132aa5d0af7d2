package httpclient

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"slices"
	"strings"
	"syscall"
)

// route is what the execute loop does with a failed attempt
type route int

const (
	routeTerminal route = iota
	routeRefresh
	routeRetry
)

func (r route) String() string {
	switch r {
	case routeRefresh:
		return "refresh"
	case routeRetry:
		return "retry"
	default:
		return "terminal"
	}
}

// Classification reasons recorded in logs
const (
	reasonLoginFailed       = "login_failed"
	reasonRefreshEndpoint   = "refresh_endpoint"
	reasonCredentialExpired = "credential_expired"
	reasonRefreshExhausted  = "refresh_exhausted"
	reasonLogoutNotRetried  = "logout_not_retried"
	reasonTransient         = "transient"
	reasonRetriesExhausted  = "retries_exhausted"
	reasonPermanent         = "permanent"
	reasonCancelled         = "cancelled"
)

// failure is the outcome of one attempt that did not produce a 2xx response
type failure struct {
	resp *Response
	err  ClientError
	// ctxErr is the caller's context error observed when the attempt ended
	ctxErr error
}

func (f *failure) status() int {
	if f.resp == nil {
		return 0
	}
	return f.resp.StatusCode
}

type decision struct {
	route    route
	category Category
	reason   string
}

// classify decides the route for a failed attempt. Rules are evaluated in order and the
// first match wins; retry and refresh never hand off to each other.
func classify(cfg *Config, rc *call, f *failure) decision {
	status := f.status()
	ep := cfg.Endpoints

	switch {
	case status == nethttp.StatusUnauthorized && matchesEndpoint(rc.path, ep.Login):
		return decision{route: routeTerminal, category: CategoryCredentialInvalid, reason: reasonLoginFailed}
	case matchesEndpoint(rc.path, ep.Refresh):
		return decision{route: routeTerminal, category: categoryOf(f), reason: reasonRefreshEndpoint}
	case status == nethttp.StatusUnauthorized && !rc.retried:
		return decision{route: routeRefresh, category: CategoryCredentialExpired, reason: reasonCredentialExpired}
	case status == nethttp.StatusUnauthorized:
		return decision{route: routeTerminal, category: CategoryCredentialInvalid, reason: reasonRefreshExhausted}
	}

	if f.ctxErr != nil {
		return decision{route: routeTerminal, category: categoryOf(f), reason: reasonCancelled}
	}

	if isTransient(cfg.Retry.RetryableStatuses, f) {
		switch {
		case matchesEndpoint(rc.path, ep.Logout):
			return decision{route: routeTerminal, category: categoryOf(f), reason: reasonLogoutNotRetried}
		case rc.retryCount < cfg.Retry.MaxRetries:
			return decision{route: routeRetry, category: CategoryTransientServer, reason: reasonTransient}
		default:
			return decision{route: routeTerminal, category: categoryOf(f), reason: reasonRetriesExhausted}
		}
	}

	return decision{route: routeTerminal, category: categoryOf(f), reason: reasonPermanent}
}

// categoryOf maps a terminal failure to its reporting category
func categoryOf(f *failure) Category {
	switch status := f.status(); {
	case f.resp == nil:
		return CategoryConnectivity
	case status == nethttp.StatusUnauthorized:
		return CategoryCredentialInvalid
	case status >= 500:
		return CategoryTransientServer
	default:
		return CategoryPermanentClient
	}
}

// isTransient reports a retryable status or a connection-abort class transport error.
// Refused connections and DNS failures are not transient: the server is not there.
func isTransient(statuses []int, f *failure) bool {
	if f.resp != nil {
		return slices.Contains(statuses, f.resp.StatusCode)
	}
	if f.err == nil {
		return false
	}
	if IsErrorType(f.err, TimeoutError) {
		return true
	}
	if !IsErrorType(f.err, NetworkError) {
		return false
	}

	err := errors.Unwrap(f.err)
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, syscall.ECONNREFUSED):
		return false
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return false
}

// matchesEndpoint reports whether path targets endpoint
func matchesEndpoint(path, endpoint string) bool {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(path, "/"), endpoint)
}

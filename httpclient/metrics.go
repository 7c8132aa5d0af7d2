package httpclient

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName = "fnb-hrms-client/httpclient"

	metricRequests       = "hrms.client.requests"        // Counter, one per Do call
	metricRetries        = "hrms.client.retries"         // Counter
	metricRefreshCycles  = "hrms.client.refresh.cycles"  // Counter
	metricRefreshWaiters = "hrms.client.refresh.waiters" // Counter
	metricFailures       = "hrms.client.failures"        // Counter, terminal failures
	metricSessionsEnded  = "hrms.client.sessions.ended"  // Counter

	attrOutcome  = "outcome"
	attrMethod   = "http.request.method"
	attrCategory = "error.category"
	attrResult   = "result"
)

// clientMetrics holds the instruments of one client
type clientMetrics struct {
	requests      metric.Int64Counter
	retries       metric.Int64Counter
	refreshCycles metric.Int64Counter
	waiters       metric.Int64Counter
	failures      metric.Int64Counter
	sessionsEnded metric.Int64Counter
}

// logMetricError logs a metric initialization error to stderr.
func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize client metric %s: %v\n", name, err)
	}
}

// newClientMetrics creates the instruments on provider, or on the global provider when nil.
func newClientMetrics(provider metric.MeterProvider) *clientMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	counter := func(name, description, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
		logMetricError(name, err)
		if c == nil {
			c, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
		}
		return c
	}

	return &clientMetrics{
		requests:      counter(metricRequests, "Number of API calls by outcome", "{request}"),
		retries:       counter(metricRetries, "Number of retries of transient failures", "{retry}"),
		refreshCycles: counter(metricRefreshCycles, "Number of token refresh cycles by result", "{cycle}"),
		waiters:       counter(metricRefreshWaiters, "Number of requests queued behind an in-flight refresh", "{request}"),
		failures:      counter(metricFailures, "Number of terminal failures by category", "{failure}"),
		sessionsEnded: counter(metricSessionsEnded, "Number of sessions terminated after refresh failure", "{session}"),
	}
}

func (m *clientMetrics) request(ctx context.Context, method, outcome string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	))
}

func (m *clientMetrics) retry(ctx context.Context, method string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
}

func (m *clientMetrics) refreshCycle(ctx context.Context, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.refreshCycles.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

func (m *clientMetrics) refreshWaiter(ctx context.Context) {
	m.waiters.Add(ctx, 1)
}

func (m *clientMetrics) failure(ctx context.Context, category Category) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCategory, string(category))))
}

func (m *clientMetrics) sessionEnded(ctx context.Context) {
	m.sessionsEnded.Add(ctx, 1)
}

package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes recorded on nock.client.requests.
const (
	outcomeMatched     = "matched"
	outcomePassthrough = "passthrough"
	outcomeError       = "error"
)

// metrics holds the metric instruments of the interception transport and
// the forwarder.
type metrics struct {
	// requests counts intercepted requests by outcome.
	requests metric.Int64Counter

	// duration measures the time spent answering a request in seconds,
	// including the real round trip for unmatched requests.
	duration metric.Float64Histogram

	// retryAttempts counts forwarder retry attempts.
	retryAttempts metric.Int64Counter

	// retryExhausted counts forwarded requests that exhausted all retries.
	retryExhausted metric.Int64Counter

	// breakerRequests counts forwarded requests by breaker result.
	breakerRequests metric.Int64Counter

	// breakerState tracks the forwarder breaker state
	// (0=closed, 1=half-open, 2=open).
	breakerState metric.Int64Gauge
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.requests, err = meter.Int64Counter(
		"nock.client.requests",
		metric.WithDescription("Number of requests seen by the nock transport"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"nock.client.duration",
		metric.WithDescription("Duration of requests seen by the nock transport in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.retryAttempts, err = meter.Int64Counter(
		"nock.forward.retry.attempts",
		metric.WithDescription("Number of forwarder retry attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.retryExhausted, err = meter.Int64Counter(
		"nock.forward.retry.exhausted",
		metric.WithDescription("Number of forwarded requests that exhausted all retries"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerRequests, err = meter.Int64Counter(
		"nock.forward.breaker.requests",
		metric.WithDescription("Number of forwarded requests by circuit breaker result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerState, err = meter.Int64Gauge(
		"nock.forward.breaker.state",
		metric.WithDescription("Forwarder circuit breaker state (0=closed, 1=half-open, 2=open)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// recordRequest records one intercepted request.
func (m *metrics) recordRequest(
	ctx context.Context,
	outcome string,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attrs...)
	allAttrs = append(allAttrs, attribute.String("nock.outcome", outcome))

	m.requests.Add(ctx, 1, metric.WithAttributes(allAttrs...))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(allAttrs...))
}

// recordRetryAttempt records a forwarder retry attempt.
func (m *metrics) recordRetryAttempt(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Int("retry.attempt", attempt)))
}

// recordRetryExhausted records a forwarded request that ran out of retries.
func (m *metrics) recordRetryExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.retryExhausted.Add(ctx, 1)
}

// recordBreakerRequest records the breaker result of a forwarded request.
func (m *metrics) recordBreakerRequest(ctx context.Context, name, result string) {
	if m == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.result", result),
	))
}

// recordBreakerState records a breaker state transition.
func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(attribute.String("breaker.name", name)))
}

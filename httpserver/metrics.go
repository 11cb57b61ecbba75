package httpserver

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scope is the instrumentation scope name for OpenTelemetry.
const scope = "github.com/kroma-labs/nock/httpserver"

// Metrics records listener metrics using OpenTelemetry.
type Metrics struct {
	serviceName     string
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	requests        metric.Int64Counter
}

// NewMetrics creates the listener instruments. A nil provider means
// otel.GetMeterProvider().
func NewMetrics(mp metric.MeterProvider, serviceName string) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(scope, metric.WithInstrumentationVersion("1.0.0"))

	requestDuration, err := meter.Float64Histogram(
		"nock.proxy.request.duration",
		metric.WithDescription("Duration of proxied requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"nock.proxy.active_requests",
		metric.WithDescription("Number of requests being proxied"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"nock.proxy.requests",
		metric.WithDescription("Number of proxied requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		serviceName:     serviceName,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
		requests:        requests,
	}, nil
}

// Middleware returns middleware that records request duration and the
// number of requests in flight.
//
// Metrics recorded:
//   - nock.proxy.request.duration: latency histogram by method and status
//   - nock.proxy.active_requests: in-flight request gauge
func (m *Metrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			attrs := []attribute.KeyValue{
				attribute.String("service.name", m.serviceName),
				attribute.String("http.request.method", r.Method),
			}

			m.activeRequests.Add(r.Context(), 1, metric.WithAttributes(attrs...))
			defer m.activeRequests.Add(r.Context(), -1, metric.WithAttributes(attrs...))

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			allAttrs := append(attrs, attribute.Int("http.response.status_code", wrapped.Status()))
			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(),
				metric.WithAttributes(allAttrs...))
		})
	}
}

// recordOutcome counts one proxied request.
//
// Metrics recorded:
//   - nock.proxy.requests: by outcome (matched, forwarded, failed, aborted)
func (m *Metrics) recordOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service.name", m.serviceName),
		attribute.String("nock.outcome", outcome),
	))
}

package httpserver

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/nock/nock"
)

// Tracing returns middleware that starts a server span per proxied request.
//
// The trace context sent by the code under test is extracted (W3C
// TraceContext by default), so the span joins the test's trace. The span
// is named "nock proxy {method}" and carries the absolute target URL.
// Nothing is injected into forwarded requests.
func Tracing(tp trace.TracerProvider, serviceName string) Middleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	propagator := otel.GetTextMapPropagator()
	tracer := tp.Tracer(scope)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, "nock proxy "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.ServiceName(serviceName),
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLFull(nock.AbsoluteURL(r)),
					semconv.ServerAddress(r.Host),
					semconv.UserAgentOriginal(r.UserAgent()),
					semconv.ClientAddress(r.RemoteAddr),
				),
			)
			defer span.End()

			if requestID := RequestIDFromContext(ctx); requestID != "" {
				span.SetAttributes(attribute.String("request.id", requestID))
			}

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			status := wrapped.Status()
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))
			if status >= 500 || status == http.StatusExpectationFailed {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

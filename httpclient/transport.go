package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/nock/nock"
)

// Compile-time interface check.
var _ http.RoundTripper = (*Transport)(nil)

// Transport is an http.RoundTripper that answers requests from a nock
// registry.
//
// Each request body is read into memory before matching and restored, so
// a request that no expectation matches is sent unchanged through the base
// transport. A matched request never reaches the network: the expectation's
// reply is returned, and an error reply is returned as the RoundTrip error.
// When the registry is inactive every request goes straight to the base
// transport.
type Transport struct {
	cfg *config
}

// NewTransport creates an intercepting transport.
//
//	reg := nock.NewRegistry()
//	client := &http.Client{Transport: httpclient.NewTransport(httpclient.WithRegistry(reg))}
func NewTransport(opts ...Option) *Transport {
	return &Transport{cfg: newConfig(opts...)}
}

// Registry returns the registry the transport consults.
func (t *Transport) Registry() *nock.Registry {
	return t.cfg.Registry
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cfg.Registry.Active() {
		return t.cfg.Base.RoundTrip(req)
	}

	start := time.Now()
	ctx, span := t.cfg.Tracer.Start(req.Context(), "nock "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(requestAttributes(req, t.cfg.baseAttributes())...),
	)
	defer span.End()

	out := req.Clone(ctx)
	captured, err := nock.NewRequest(out)
	if err != nil {
		setSpanError(span, err, classifyError(err))
		t.cfg.Metrics.recordRequest(ctx, outcomeError, time.Since(start), t.cfg.baseAttributes())
		return nil, err
	}

	e := t.cfg.Registry.Match(captured)
	span.SetAttributes(attribute.Bool("nock.matched", e != nil))

	if e == nil {
		return t.passthrough(out, captured, span, start)
	}

	span.SetAttributes(attribute.String("nock.expectation", e.String()))
	resp, err := nock.BuildResponse(e, captured)
	if err != nil {
		errorType := classifyError(err)
		if e.Reply() == nock.ReplyError {
			errorType = ErrorTypeReply
		}
		setSpanError(span, err, errorType)
		t.cfg.Metrics.recordRequest(ctx, outcomeError, time.Since(start), t.cfg.baseAttributes())
		if t.cfg.Debug {
			t.cfg.Logger.Debug().Err(err).Str("method", req.Method).Str("url", captured.URL).
				Str("nock", e.String()).Msg("nock: replying with error")
		}
		return nil, err
	}

	resp.Request = req
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	t.cfg.Metrics.recordRequest(ctx, outcomeMatched, time.Since(start), t.cfg.baseAttributes())

	if t.cfg.Debug {
		logMatched(t.cfg.Logger, req, e, resp)
	}
	return resp, nil
}

// passthrough sends an unmatched request through the base transport.
func (t *Transport) passthrough(
	req *http.Request,
	captured *nock.Request,
	span trace.Span,
	start time.Time,
) (*http.Response, error) {
	ctx := req.Context()

	if t.cfg.Debug {
		logUnmatched(t.cfg.Logger, req, []byte(captured.Body))
	}

	resp, err := t.cfg.Base.RoundTrip(req)
	if err != nil {
		setSpanError(span, err, classifyError(err))
		t.cfg.Metrics.recordRequest(ctx, outcomeError, time.Since(start), t.cfg.baseAttributes())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	t.cfg.Metrics.recordRequest(ctx, outcomePassthrough, time.Since(start), t.cfg.baseAttributes())
	return resp, nil
}

package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// retryTransport wraps an http.RoundTripper with retry logic.
type retryTransport struct {
	base    http.RoundTripper
	cfg     RetryConfig
	metrics *metrics
}

// newRetryTransport wraps base with retries, or returns base unchanged
// when retries are disabled.
func newRetryTransport(base http.RoundTripper, cfg RetryConfig, m *metrics) http.RoundTripper {
	if !cfg.IsEnabled() {
		return base
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier
	}
	return &retryTransport{base: base, cfg: cfg, metrics: m}
}

// RoundTrip implements http.RoundTripper with automatic retries.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	span := trace.SpanFromContext(ctx)
	attempt := 0

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(ExponentialBackOffFromConfig(t.cfg)),
		backoff.WithMaxTries(t.cfg.MaxRetries + 1),
		backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			if span.IsRecording() {
				span.AddEvent("nock.forward.retry", trace.WithAttributes(
					attribute.Int("retry.attempt", attempt),
					attribute.Int64("retry.delay_ms", next.Milliseconds()),
				))
			}
			t.metrics.recordRetryAttempt(ctx, attempt)
		}),
	}
	if t.cfg.MaxElapsedTime > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(t.cfg.MaxElapsedTime))
	}

	var lastResp *http.Response
	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(cloneRequest(req, bodyBytes))

		if !t.cfg.Classifier(resp, err) {
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return resp, nil
		}

		if err != nil {
			return nil, err
		}

		// Keep the retryable response so it can be relayed if this was
		// the last attempt.
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		resp.Body = io.NopCloser(bytes.NewReader(data))
		lastResp = resp
		return nil, errRetryableStatus
	}, retryOpts...)

	if err != nil && attempt > 0 {
		t.metrics.recordRetryExhausted(ctx)
	}
	if errors.Is(err, errRetryableStatus) && lastResp != nil {
		return lastResp, nil
	}
	return resp, err
}

// cloneRequest creates a copy of the request with a fresh body.
func cloneRequest(req *http.Request, bodyBytes []byte) *http.Request {
	clone := req.Clone(req.Context())

	if bodyBytes != nil {
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.ContentLength = int64(len(bodyBytes))
	} else if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}

	return clone
}

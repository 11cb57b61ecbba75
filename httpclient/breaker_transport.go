package httpclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// errSyntheticFailure signals the breaker that a request failed (e.g. a
// 500 status) although the underlying RoundTrip returned no error. It is
// unwrapped before returning to the caller.
var errSyntheticFailure = errors.New("synthetic failure")

// circuitBreakerTransport is a RoundTripper that wraps requests in a
// circuit breaker.
type circuitBreakerTransport struct {
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	next       http.RoundTripper
	classifier BreakerClassifier
	metrics    *metrics
	name       string
}

// newCircuitBreakerTransport wraps next with a breaker, or returns next
// when cfg is nil.
func newCircuitBreakerTransport(
	next http.RoundTripper,
	cfg *BreakerConfig,
	name string,
	m *metrics,
) http.RoundTripper {
	if cfg == nil {
		return next
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.recordBreakerState(context.Background(), name, int64(to))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &circuitBreakerTransport{
		breaker:    gobreaker.NewCircuitBreaker[*http.Response](st),
		next:       next,
		classifier: classifier,
		metrics:    m,
		name:       name,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose

		if t.classifier(resp, err) {
			if err != nil {
				return resp, err
			}
			return resp, errSyntheticFailure
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.metrics.recordBreakerRequest(ctx, t.name, "rejected")
		} else {
			t.metrics.recordBreakerRequest(ctx, t.name, "failure")
		}

		if errors.Is(err, errSyntheticFailure) && resp != nil {
			return resp, nil
		}
		return nil, err
	}

	t.metrics.recordBreakerRequest(ctx, t.name, "success")
	return resp, nil
}

package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ForwardConfig configures the client the local proxy uses to send
// unmatched requests to their real destination.
type ForwardConfig struct {
	// Timeout bounds a whole forwarded exchange, retries included.
	// 0 means no timeout beyond the transport defaults.
	Timeout time.Duration

	// Retry enables retries of forwarded requests. Nil disables them.
	Retry *RetryConfig

	// Breaker enables a circuit breaker around forwarded requests.
	// Nil disables it.
	Breaker *BreakerConfig

	// Name identifies the breaker in metrics.
	// Default: "nock-forwarder"
	Name string

	// MeterProvider receives retry and breaker metrics.
	// Default: otel.GetMeterProvider()
	MeterProvider metric.MeterProvider
}

// NewForwarder returns the client used to forward unmatched requests.
//
// The client never uses a proxy, so forwarding cannot loop back into the
// listener that redirected the default transport. Redirects are not
// followed: the caller receives the destination's response as is.
func NewForwarder(cfg ForwardConfig) *http.Client {
	name := cfg.Name
	if name == "" {
		name = "nock-forwarder"
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m, err := newMetrics(mp.Meter(scope))
	if err != nil {
		debugLogger.Warn().Err(err).Msg("nock: failed to create forwarder metrics")
	}

	var rt http.RoundTripper = directTransport()
	if cfg.Retry != nil {
		rt = newRetryTransport(rt, *cfg.Retry, m)
	}
	rt = newCircuitBreakerTransport(rt, cfg.Breaker, name, m)

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// directTransport returns a transport that ignores proxy settings.
func directTransport() http.RoundTripper {
	base, ok := realTransport.(*http.Transport)
	if !ok {
		return &http.Transport{ForceAttemptHTTP2: true}
	}
	t := base.Clone()
	t.Proxy = nil
	return t
}

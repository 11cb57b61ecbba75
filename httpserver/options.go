package httpserver

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/nock/httpclient"
)

// Option configures the listener.
type Option func(*Config)

// WithConfig applies all settings from a Config struct.
//
// Use DefaultConfig or LoadConfig as a starting point, then override
// specific fields as needed.
//
// Example:
//
//	cfg, err := httpserver.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	listener := httpserver.NewListener(reg,
//	    httpserver.WithConfig(cfg),
//	    httpserver.WithLogger(logger),
//	)
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithAddr sets the listen address. Use "127.0.0.1:0" to let the OS pick
// a free port and read it back with Listener.Addr.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithServiceName sets the name used in logs, spans and metrics.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithLogger sets the logger for lifecycle events and proxied requests.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithForwardTimeout bounds the forwarding of unmatched requests.
func WithForwardTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ForwardTimeout = d
	}
}

// WithShutdownTimeout sets how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ShutdownTimeout = d
	}
}

// WithMaxInFlight bounds the number of requests handled concurrently.
// Requests beyond the bound wait for a slot.
func WithMaxInFlight(n int64) Option {
	return func(c *Config) {
		c.MaxInFlight = n
	}
}

// WithDefaultProxy controls whether http.DefaultTransport is pointed at
// the listener while it runs.
func WithDefaultProxy(enabled bool) Option {
	return func(c *Config) {
		c.SetDefaultProxy = enabled
	}
}

// WithMetricsPath sets the path serving Prometheus metrics.
// An empty path disables the endpoint.
func WithMetricsPath(path string) Option {
	return func(c *Config) {
		c.MetricsPath = path
	}
}

// WithRetry enables retries of forwarded requests.
//
// Example:
//
//	listener := httpserver.NewListener(reg,
//	    httpserver.WithRetry(httpclient.DefaultRetryConfig()),
//	)
func WithRetry(cfg httpclient.RetryConfig) Option {
	return func(c *Config) {
		c.Retry = &cfg
	}
}

// WithBreaker enables a circuit breaker around forwarded requests, so a
// destination that is down fails fast instead of costing ForwardTimeout
// on every request.
func WithBreaker(cfg httpclient.BreakerConfig) Option {
	return func(c *Config) {
		c.Breaker = &cfg
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.MeterProvider = mp
	}
}

// WithMiddleware adds middleware around the proxy handler.
//
// Middleware is applied in order (first middleware wraps outermost), inside
// the built-in request id, recovery, tracing, metrics and logging stack.
func WithMiddleware(ms ...Middleware) Option {
	return func(c *Config) {
		c.Middleware = append(c.Middleware, ms...)
	}
}

package httpclient

import (
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/nock/nock"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/nock/httpclient"
)

// realTransport is http.DefaultTransport as it was before Activate could
// replace it. Unmatched requests are sent through it by default.
var realTransport = http.DefaultTransport

// Option configures a Transport.
type Option func(*config)

// config holds the resolved settings of a Transport.
type config struct {
	Registry       *nock.Registry
	Base           http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         zerolog.Logger
	Debug          bool
	ServiceName    string

	// Derived from the providers in newConfig.
	Tracer  trace.Tracer
	Metrics *metrics
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		Registry:       nock.Default(),
		Base:           realTransport,
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Logger:         debugLogger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)

	m, err := newMetrics(cfg.MeterProvider.Meter(scope))
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("nock: failed to create client metrics")
	}
	cfg.Metrics = m

	return cfg
}

// baseAttributes returns attributes attached to every span and metric.
func (c *config) baseAttributes() []attribute.KeyValue {
	if c.ServiceName == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String("service.name", c.ServiceName)}
}

// WithRegistry sets the registry consulted for every request.
// Default: nock.Default().
func WithRegistry(reg *nock.Registry) Option {
	return func(c *config) {
		if reg != nil {
			c.Registry = reg
		}
	}
}

// WithBaseTransport sets the transport used for requests that no
// expectation matches. Default: the original http.DefaultTransport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		if rt != nil {
			c.Base = rt
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default: otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// Default: otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.MeterProvider = mp
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = logger
	}
}

// WithDebug logs every intercepted request. Requests that reach the real
// network are logged as cURL commands so they can be turned into
// expectations.
func WithDebug(enabled bool) Option {
	return func(c *config) {
		c.Debug = enabled
	}
}

// WithServiceName adds a service.name attribute to spans and metrics.
func WithServiceName(name string) Option {
	return func(c *config) {
		c.ServiceName = name
	}
}

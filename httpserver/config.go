package httpserver

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/nock/httpclient"
)

// envPrefix is the prefix of environment variables read by LoadConfig.
const envPrefix = "NOCK_"

// Config holds the local proxy listener configuration.
//
// Use DefaultConfig() or LoadConfig() to get a properly initialized
// configuration, then modify specific fields as needed.
//
// Example:
//
//	cfg := httpserver.DefaultConfig()
//	cfg.Addr = "127.0.0.1:0"
//	cfg.ForwardTimeout = 2 * time.Second
//
//	listener := httpserver.NewListener(reg, httpserver.WithConfig(cfg))
type Config struct {
	// Addr is the TCP address to listen on.
	// Default: ":8080"
	Addr string `koanf:"addr"`

	// ServiceName identifies the listener in logs, spans and metrics.
	// Default: "nock"
	ServiceName string `koanf:"service_name"`

	// ForwardTimeout bounds the forwarding of an unmatched request to its
	// real destination. 0 means no timeout beyond the transport defaults.
	ForwardTimeout time.Duration `koanf:"forward_timeout"`

	// ReadHeaderTimeout is the maximum duration for reading request
	// headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`

	// ShutdownTimeout is the maximum duration Stop waits for in-flight
	// requests before closing their connections.
	// Default: 5s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxInFlight bounds the number of requests handled concurrently.
	// 0 means unbounded.
	MaxInFlight int64 `koanf:"max_in_flight"`

	// SetDefaultProxy points http.DefaultTransport at the listener while
	// it runs, so every client using the default transport goes through
	// it.
	// Default: true
	SetDefaultProxy bool `koanf:"set_default_proxy"`

	// MetricsPath serves Prometheus metrics for origin-form requests.
	// Empty disables the endpoint.
	// Default: "/__nock/metrics"
	MetricsPath string `koanf:"metrics_path"`

	// PendingPath serves the pending expectations as JSON for
	// origin-form requests. Empty disables the endpoint.
	// Default: "/__nock/pending"
	PendingPath string `koanf:"pending_path"`

	// BindAttempts is the number of attempts made to bind Addr.
	// Default: 3
	BindAttempts uint `koanf:"bind_attempts"`

	// BindInterval is the initial delay between bind attempts.
	// Default: 50ms
	BindInterval time.Duration `koanf:"bind_interval"`

	// Logger receives lifecycle and request logs. Successful requests are
	// logged at debug level.
	// Default: info level JSON on stdout
	Logger zerolog.Logger `koanf:"-"`

	// Retry enables retries of forwarded requests. Nil disables them.
	Retry *httpclient.RetryConfig `koanf:"-"`

	// Breaker enables a circuit breaker around forwarded requests.
	// Nil disables it.
	Breaker *httpclient.BreakerConfig `koanf:"-"`

	// TracerProvider receives one server span per proxied request.
	// Default: otel.GetTracerProvider()
	TracerProvider trace.TracerProvider `koanf:"-"`

	// MeterProvider receives listener and forwarder metrics.
	// Default: otel.GetMeterProvider()
	MeterProvider metric.MeterProvider `koanf:"-"`

	// Middleware wraps the proxy handler, after the built-in stack.
	Middleware []Middleware `koanf:"-"`
}

// DefaultConfig returns the listener defaults.
//
//   - Addr: ":8080"
//   - ReadHeaderTimeout: 10s
//   - ShutdownTimeout: 5s
//   - SetDefaultProxy: true
//   - BindAttempts: 3
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ServiceName:       "nock",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		SetDefaultProxy:   true,
		MetricsPath:       "/__nock/metrics",
		PendingPath:       "/__nock/pending",
		BindAttempts:      3,
		BindInterval:      50 * time.Millisecond,
		Logger:            zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel),
	}
}

// LoadConfig returns DefaultConfig overridden by NOCK_* environment
// variables. Variable names are the lower-cased keys of the koanf tags, so
// NOCK_FORWARD_TIMEOUT=2s sets ForwardTimeout.
//
//	NOCK_ADDR=127.0.0.1:9090 NOCK_SET_DEFAULT_PROXY=false go test ./...
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	defaults := map[string]any{
		"addr":                cfg.Addr,
		"service_name":        cfg.ServiceName,
		"forward_timeout":     cfg.ForwardTimeout,
		"read_header_timeout": cfg.ReadHeaderTimeout,
		"shutdown_timeout":    cfg.ShutdownTimeout,
		"max_in_flight":       cfg.MaxInFlight,
		"set_default_proxy":   cfg.SetDefaultProxy,
		"metrics_path":        cfg.MetricsPath,
		"pending_path":        cfg.PendingPath,
		"bind_attempts":       cfg.BindAttempts,
		"bind_interval":       cfg.BindInterval,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return cfg, fmt.Errorf("httpserver: load defaults: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("httpserver: load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("httpserver: decode config: %w", err)
	}
	return cfg, nil
}

// envKey maps NOCK_FORWARD_TIMEOUT to forward_timeout.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, envPrefix))
}

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/kroma-labs/nock/httpclient"
	"github.com/kroma-labs/nock/nock"
)

// ErrBind is returned by Start when the listen address cannot be bound.
var ErrBind = errors.New("httpserver: failed to bind listener")

// Compile-time interface check.
var _ nock.Interceptor = (*Listener)(nil)

// Listener is the local proxy interception point.
//
// It answers requests from a nock registry and forwards the ones no
// expectation matches to their real destination. While it runs, and unless
// disabled with WithDefaultProxy(false), http.DefaultTransport sends every
// request through it.
//
// Create a Listener with NewListener and tie it to the registry with
// Install, or drive it with Start and Stop:
//
//	reg := nock.NewRegistry()
//	if err := httpserver.Install(reg, httpserver.WithAddr("127.0.0.1:0")); err != nil {
//	    t.Fatal(err)
//	}
//	t.Cleanup(func() { _ = reg.Stop(context.Background()) })
//
//	reg.New("http://api.example.com").Get("/users").Reply(http.StatusOK, "[]")
//	resp, err := http.Get("http://api.example.com/users") // answered by the listener
type Listener struct {
	reg     *nock.Registry
	config  Config
	logger  zerolog.Logger
	forward *http.Client
	metrics *Metrics
	sem     *semaphore.Weighted
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	ln         net.Listener
	served     chan struct{}
	previous   http.RoundTripper
	proxied    http.RoundTripper

	tunnelsMu sync.Mutex
	tunnels   map[net.Conn]struct{}
}

// NewListener creates a stopped listener for reg.
// If no config is provided, DefaultConfig() is used.
func NewListener(reg *nock.Registry, opts ...Option) *Listener {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "nock"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.BindAttempts == 0 {
		cfg.BindAttempts = 1
	}

	logger := cfg.Logger

	metrics, err := NewMetrics(cfg.MeterProvider, cfg.ServiceName)
	if err != nil {
		logger.Warn().Err(err).Msg("nock: failed to create listener metrics")
	}

	l := &Listener{
		reg:     reg,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tunnels: make(map[net.Conn]struct{}),
		forward: httpclient.NewForwarder(httpclient.ForwardConfig{
			Timeout:       cfg.ForwardTimeout,
			Retry:         cfg.Retry,
			Breaker:       cfg.Breaker,
			Name:          cfg.ServiceName + "-forwarder",
			MeterProvider: cfg.MeterProvider,
		}),
	}
	if cfg.MaxInFlight > 0 {
		l.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	middlewares := []Middleware{
		RequestID(),
		Recovery(logger),
		Tracing(cfg.TracerProvider, cfg.ServiceName),
		metrics.Middleware(),
		Logger(logger, cfg.ServiceName),
	}
	middlewares = append(middlewares, cfg.Middleware...)
	l.handler = Chain(middlewares...)(l.routes())

	return l
}

// Install registers a new listener as reg's interceptor: it starts when the
// first expectation is built from reg and stops with reg.Stop.
func Install(reg *nock.Registry, opts ...Option) error {
	return reg.UseInterceptor(NewListener(reg, opts...))
}

// Handler returns the listener's request handler, middleware included.
func (l *Listener) Handler() http.Handler {
	return l.handler
}

// Start binds the listen address and serves in the background. Binding is
// retried with exponential backoff; the last bind error is returned
// wrapped in ErrBind. Start is a no-op on a running listener.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.httpServer != nil {
		return nil
	}

	ln, err := l.bind()
	if err != nil {
		l.logger.Error().Err(err).Str("addr", l.config.Addr).Msg("nock: listener failed to start")
		return fmt.Errorf("%w %s: %w", ErrBind, l.config.Addr, err)
	}

	l.ln = ln
	l.served = make(chan struct{})
	l.httpServer = &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: l.config.ReadHeaderTimeout,
	}

	go func(srv *http.Server, served chan struct{}) {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Msg("nock: listener stopped serving")
		}
	}(l.httpServer, l.served)

	if l.config.SetDefaultProxy {
		l.redirectDefaultTransport()
	}

	l.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("service", l.config.ServiceName).
		Bool("default_proxy", l.proxied != nil).
		Msg("nock: listener started")
	return nil
}

func (l *Listener) bind() (net.Listener, error) {
	b := backoff.NewExponentialBackOff()
	if l.config.BindInterval > 0 {
		b.InitialInterval = l.config.BindInterval
	}

	return backoff.Retry(context.Background(), func() (net.Listener, error) {
		return net.Listen("tcp", l.config.Addr)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(l.config.BindAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.logger.Warn().Err(err).Dur("retry_in", next).Msg("nock: bind failed, retrying")
		}),
	)
}

// Stop shuts the listener down, waiting up to ShutdownTimeout for
// in-flight requests, and restores http.DefaultTransport. Stop is
// idempotent.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.httpServer == nil {
		return nil
	}

	l.restoreDefaultTransport()

	shutdownCtx := ctx
	if l.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, l.config.ShutdownTimeout)
		defer cancel()
	}

	err := l.httpServer.Shutdown(shutdownCtx)
	l.closeTunnels()
	if err != nil {
		l.logger.Error().Err(err).Msg("nock: graceful shutdown failed, forcing close")
		if closeErr := l.httpServer.Close(); closeErr != nil {
			l.logger.Error().Err(closeErr).Msg("nock: force close failed")
		}
	}
	<-l.served

	l.httpServer = nil
	l.ln = nil
	l.logger.Info().Msg("nock: listener stopped")
	return err
}

// Addr returns the bound address, or "" when the listener is not running.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// URL returns the proxy URL clients can use to reach the listener, or nil
// when it is not running. Wildcard bind addresses are reported as
// loopback.
func (l *Listener) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.urlLocked()
}

// redirectDefaultTransport replaces http.DefaultTransport with a clone that
// sends every request to the listener. Must be called with l.mu held.
func (l *Listener) redirectDefaultTransport() {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		l.logger.Warn().
			Str("transport", fmt.Sprintf("%T", http.DefaultTransport)).
			Msg("nock: default transport is not an *http.Transport, proxy not set")
		return
	}

	proxyURL := l.urlLocked()
	proxied := base.Clone()
	proxied.Proxy = http.ProxyURL(proxyURL)

	l.previous = http.DefaultTransport
	l.proxied = proxied
	http.DefaultTransport = proxied
}

// restoreDefaultTransport undoes redirectDefaultTransport, unless someone
// replaced http.DefaultTransport in the meantime. Must be called with l.mu
// held.
func (l *Listener) restoreDefaultTransport() {
	if l.proxied == nil {
		return
	}
	if http.DefaultTransport == l.proxied {
		http.DefaultTransport = l.previous
	} else {
		l.logger.Warn().Msg("nock: default transport was replaced while the listener ran, leaving it")
	}
	if t, ok := l.proxied.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	l.previous = nil
	l.proxied = nil
}

// urlLocked is URL without taking l.mu.
func (l *Listener) urlLocked() *url.URL {
	host, port, _ := net.SplitHostPort(l.ln.Addr().String())
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}
}

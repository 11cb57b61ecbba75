package httpclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/kroma-labs/nock/nock"
)

// New creates an http.Client whose requests are answered from a nock
// registry.
//
//	reg := nock.NewRegistry()
//	client := httpclient.New(httpclient.WithRegistry(reg))
//	reg.New("https://api.example.com").Get("/users").Reply(http.StatusOK, "[]")
//	resp, err := client.Get("https://api.example.com/users")
func New(opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(opts...)}
}

// WrapClient returns a copy of c whose transport intercepts requests.
// Unmatched requests go through c's own transport.
func WrapClient(c *http.Client, opts ...Option) *http.Client {
	wrapped := *c
	base := c.Transport
	if base == nil {
		base = realTransport
	}
	wrapped.Transport = NewTransport(append([]Option{WithBaseTransport(base)}, opts...)...)
	return &wrapped
}

var (
	activeMu        sync.Mutex
	activeTransport *Transport
	activePrevious  http.RoundTripper
)

// Activate replaces http.DefaultTransport with an intercepting Transport,
// so every client that relies on the default transport is intercepted.
// Calling Activate again replaces the active transport. The previous
// default transport is used for unmatched requests unless
// WithBaseTransport is given.
func Activate(opts ...Option) *Transport {
	activeMu.Lock()
	defer activeMu.Unlock()

	if activeTransport == nil {
		activePrevious = http.DefaultTransport
	}

	t := NewTransport(append([]Option{WithBaseTransport(activePrevious)}, opts...)...)
	activeTransport = t
	http.DefaultTransport = t
	return t
}

// Deactivate restores the http.DefaultTransport replaced by Activate.
// It is a no-op when nothing is active.
func Deactivate() {
	activeMu.Lock()
	defer activeMu.Unlock()

	if activeTransport == nil {
		return
	}
	http.DefaultTransport = activePrevious
	activeTransport = nil
	activePrevious = nil
}

// defaultTransportInterceptor ties Activate and Deactivate to the lifecycle
// of a registry.
type defaultTransportInterceptor struct {
	opts []Option
}

func (d *defaultTransportInterceptor) Start() error {
	Activate(d.opts...)
	return nil
}

func (d *defaultTransportInterceptor) Stop(context.Context) error {
	Deactivate()
	return nil
}

// Install makes reg activate the default transport interception when its
// first expectation is built, and deactivate it on reg.Stop.
func Install(reg *nock.Registry, opts ...Option) error {
	opts = append([]Option{WithRegistry(reg)}, opts...)
	return reg.UseInterceptor(&defaultTransportInterceptor{opts: opts})
}

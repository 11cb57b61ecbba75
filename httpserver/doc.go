// Package httpserver runs nock as a local HTTP proxy.
//
// A Listener answers requests from a nock registry. Requests that no
// expectation matches are forwarded to their real destination and the
// answer is relayed back. While the listener runs, http.DefaultTransport is
// pointed at it, so code under test needs no changes to be intercepted.
//
// # Quick Start
//
// Tie a listener to a registry. It starts with the first expectation and
// stops with the registry:
//
//	reg := nock.NewRegistry()
//	if err := httpserver.Install(reg, httpserver.WithAddr("127.0.0.1:0")); err != nil {
//	    t.Fatal(err)
//	}
//	t.Cleanup(func() { _ = reg.Stop(context.Background()) })
//
//	reg.New("http://api.example.com").Get("/users").Reply(http.StatusOK, `[{"id":1}]`)
//
//	resp, err := http.Get("http://api.example.com/users")
//
// # Outcomes
//
// Each proxied request ends in one of these outcomes:
//
//   - matched: the expectation's reply is written back
//   - forwarded: the real destination's answer is relayed
//   - failed: forwarding or the expectation's ResponderFunc failed; the
//     caller receives 417 Expectation Failed with a diagnostic body
//   - aborted: the expectation replies with an error; the connection is
//     dropped so the caller sees a transport error
//   - tunneled: a CONNECT request; the connection is piped to its target
//
// # HTTPS
//
// HTTPS requests reach the proxy as CONNECT and are tunnelled unchanged to
// their destination. Their content is encrypted, so they are never matched
// against expectations. Stop closes open tunnels.
//
// # Forwarding
//
// Forwarded requests keep their method, headers and body. Hop-by-hop
// headers are dropped, and the headers net/http manages itself (Host,
// Content-Length, Transfer-Encoding, Connection, Expect) are carried over
// to the matching http.Request fields. The forwarding client never uses a
// proxy and can retry or circuit-break:
//
//	httpserver.NewListener(reg,
//	    httpserver.WithForwardTimeout(2*time.Second),
//	    httpserver.WithRetry(httpclient.DefaultRetryConfig()),
//	    httpserver.WithBreaker(httpclient.DefaultBreakerConfig()),
//	)
//
// # Configuration
//
// LoadConfig reads NOCK_* environment variables over DefaultConfig:
//
//	NOCK_ADDR=127.0.0.1:9090
//	NOCK_FORWARD_TIMEOUT=2s
//	NOCK_MAX_IN_FLIGHT=32
//	NOCK_SET_DEFAULT_PROXY=false
//
// # Observability
//
// Every request gets a request id, a server span and duration metrics,
// and is logged once completed. Origin-form requests to the listener
// itself serve:
//
//   - /__nock/metrics: Prometheus metrics of the registry
//   - /__nock/pending: the pending expectations as JSON
package httpserver

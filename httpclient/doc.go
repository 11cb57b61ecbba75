// Package httpclient intercepts outbound HTTP requests in process and
// answers them from a nock registry.
//
// # Features
//
//   - An http.RoundTripper that matches requests against a nock.Registry
//   - Unmatched requests pass through to the real transport unchanged
//   - Process-wide interception by replacing http.DefaultTransport
//   - OpenTelemetry spans and metrics for every intercepted request
//   - A forwarding client for the local proxy, with optional retries and
//     circuit breaking
//
// # Quick Start
//
// Intercept a single client:
//
//	reg := nock.NewRegistry()
//	client := httpclient.New(httpclient.WithRegistry(reg))
//
//	reg.New("https://api.example.com").
//	    Get("/users").
//	    Reply(http.StatusOK, `[{"id":1}]`)
//
//	resp, err := client.Get("https://api.example.com/users")
//
// Intercept every client using http.DefaultTransport:
//
//	httpclient.Activate(httpclient.WithRegistry(reg))
//	defer httpclient.Deactivate()
//
// Or tie interception to the registry lifecycle, so it starts with the
// first expectation and stops with reg.Stop:
//
//	err := httpclient.Install(reg)
//
// # Error Replies
//
// An expectation registered with ReplyError makes RoundTrip return the
// configured error; http.Client wraps it in a *url.Error, so callers can
// check it with errors.Is:
//
//	reg.New("https://api.example.com").Get("/users").ReplyError(io.ErrUnexpectedEOF)
//	_, err := client.Get("https://api.example.com/users")
//	errors.Is(err, io.ErrUnexpectedEOF) // true
//
// # Debugging
//
// WithDebug logs every request. Requests that reach the network are logged
// with an equivalent cURL command:
//
//	client := httpclient.New(
//	    httpclient.WithRegistry(reg),
//	    httpclient.WithDebug(true),
//	)
//
// # Forwarding
//
// NewForwarder builds the client the httpserver listener uses to forward
// unmatched requests:
//
//	retry := httpclient.DefaultRetryConfig()
//	client := httpclient.NewForwarder(httpclient.ForwardConfig{
//	    Timeout: 5 * time.Second,
//	    Retry:   &retry,
//	})
package httpclient

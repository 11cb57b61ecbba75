package httpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kroma-labs/nock/nock"
)

// hopByHopHeaders are meaningful for a single connection only and are
// never forwarded or relayed.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// routes returns the listener's handler without middleware. CONNECT
// requests are tunneled, origin-form requests for the metrics and pending
// paths are served by the listener itself; everything else is proxied.
func (l *Listener) routes() http.Handler {
	var metricsHandler http.Handler
	if l.config.MetricsPath != "" {
		metricsHandler = PrometheusHandler(l.reg, l.config.ServiceName)
	}
	var pendingHandler http.Handler
	if l.config.PendingPath != "" {
		pendingHandler = PendingHandler(l.reg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodConnect {
			l.tunnel(w, r)
			return
		}
		if !r.URL.IsAbs() {
			switch {
			case metricsHandler != nil && r.URL.Path == l.config.MetricsPath:
				noteMatch(r.Context(), OutcomeAdmin, nil)
				metricsHandler.ServeHTTP(w, r)
				return
			case pendingHandler != nil && r.URL.Path == l.config.PendingPath:
				noteMatch(r.Context(), OutcomeAdmin, nil)
				pendingHandler.ServeHTTP(w, r)
				return
			case addressedToSelf(r):
				noteMatch(r.Context(), OutcomeAdmin, nil)
				WriteError(w, http.StatusNotFound, "not a nock listener endpoint",
					Error{Field: "path", Message: r.URL.Path})
				return
			}
		}
		l.proxy(w, r)
	})
}

// proxy answers r from the registry, or forwards it to its real
// destination when no expectation matches.
func (l *Listener) proxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer l.sem.Release(1)
	}

	req, err := nock.NewRequest(r)
	if err != nil {
		l.fail(w, r, nock.AbsoluteURL(r), err)
		return
	}

	if !l.reg.Active() {
		l.forwardAndRelay(w, r, req)
		return
	}

	e := l.reg.Match(req)
	if e == nil {
		l.forwardAndRelay(w, r, req)
		return
	}

	resp, err := buildResponse(e, req)
	if err != nil {
		if e.Reply() == nock.ReplyError {
			noteMatch(ctx, OutcomeAborted, e)
			l.metrics.recordOutcome(ctx, OutcomeAborted)
			l.logger.Info().Err(err).
				Str("url", req.URL).
				Str("nock", e.String()).
				Msg("nock: error reply, aborting connection")
			panic(http.ErrAbortHandler)
		}
		noteMatch(ctx, OutcomeFailed, e)
		l.fail(w, r, req.URL, err)
		return
	}
	defer resp.Body.Close()

	noteMatch(ctx, OutcomeMatched, e)
	l.metrics.recordOutcome(ctx, OutcomeMatched)
	writeResponse(w, resp)
}

// buildResponse is nock.BuildResponse with panics of the expectation's
// ResponderFunc turned into errors.
func buildResponse(e *nock.Expectation, req *nock.Request) (resp *http.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = fmt.Errorf("%w: panic: %v", nock.ErrResponderFailed, rec)
		}
	}()
	return nock.BuildResponse(e, req)
}

// forwardAndRelay sends r to its real destination and relays the answer.
func (l *Listener) forwardAndRelay(w http.ResponseWriter, r *http.Request, req *nock.Request) {
	ctx := r.Context()

	resp, err := l.forwardRequest(ctx, r, req)
	if err != nil {
		noteMatch(ctx, OutcomeFailed, nil)
		l.fail(w, r, req.URL, err)
		return
	}
	defer resp.Body.Close()

	noteMatch(ctx, OutcomeForwarded, nil)
	l.metrics.recordOutcome(ctx, OutcomeForwarded)
	removeHopByHopHeaders(resp.Header)
	writeResponse(w, resp)
}

// forwardRequest builds the outbound copy of r and sends it with the
// forwarding client.
func (l *Listener) forwardRequest(ctx context.Context, r *http.Request, req *nock.Request) (*http.Response, error) {
	out, err := http.NewRequestWithContext(ctx, r.Method, req.URL, strings.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	if req.Body == "" {
		out.Body = http.NoBody
	}

	copyHeaders(out.Header, r.Header)
	translateRestrictedHeaders(out, r)
	removeHopByHopHeaders(out.Header)

	return l.forward.Do(out)
}

// translateRestrictedHeaders carries the headers net/http manages itself
// over to their http.Request fields.
func translateRestrictedHeaders(out, in *http.Request) {
	// Host: the incoming Host header, which may differ from the URL host.
	if in.Host != "" {
		out.Host = in.Host
	}

	// Content-Length: recomputed from the buffered body.
	out.Header.Del("Content-Length")

	// Transfer-Encoding: the body is buffered, so it is sent with a length.
	out.TransferEncoding = nil

	// Connection and Proxy-Connection: keep-alive unless the caller asked
	// to close.
	out.Close = in.Close ||
		headerHasToken(in.Header, "Connection", "close") ||
		headerHasToken(in.Header, "Proxy-Connection", "close")

	// Expect: only 100-continue is meaningful; net/http handles it when the
	// header is present.
	if !strings.EqualFold(in.Header.Get("Expect"), "100-continue") {
		out.Header.Del("Expect")
	}
}

// fail answers with 417 Expectation Failed and a diagnostic body.
func (l *Listener) fail(w http.ResponseWriter, r *http.Request, target string, err error) {
	ctx := r.Context()
	l.metrics.recordOutcome(ctx, OutcomeFailed)

	body := fmt.Sprintf(
		"nock: an error occurred when making a request to '%s': %v, now returning an Expectation Failed status code",
		target, err)
	l.logger.Warn().Err(err).
		Str("method", r.Method).
		Str("url", target).
		Str("request_id", RequestIDFromContext(ctx)).
		Msg("nock: request failed")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusExpectationFailed)
	_, _ = io.WriteString(w, body)
}

// writeResponse writes resp's status, headers and body to w.
func writeResponse(w http.ResponseWriter, resp *http.Response) {
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if resp.Body != nil {
		_, _ = io.Copy(w, resp.Body)
	}
}

// copyHeaders copies headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// removeHopByHopHeaders removes headers that should not be forwarded,
// including the ones listed in the Connection header.
func removeHopByHopHeaders(h http.Header) {
	for _, value := range h.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}

// addressedToSelf reports whether an origin-form request targets the
// listener itself. Forwarding it would loop back into the listener.
func addressedToSelf(r *http.Request) bool {
	local, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok {
		return false
	}
	_, localPort, err := net.SplitHostPort(local.String())
	if err != nil {
		return false
	}

	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		host, port = r.Host, "80"
	}
	if port != localPort {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// headerHasToken reports whether a comma separated header contains token.
func headerHasToken(h http.Header, key, token string) bool {
	for _, value := range h.Values(key) {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

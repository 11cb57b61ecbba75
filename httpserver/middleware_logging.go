package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/nock/nock"
)

// Outcomes of a proxied request, as logged and counted.
const (
	OutcomeMatched   = "matched"
	OutcomeForwarded = "forwarded"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
	OutcomeTunneled  = "tunneled"
	OutcomeAdmin     = "admin"
)

// requestInfo carries what the proxy handler learned about a request back
// to the logging middleware.
type requestInfo struct {
	outcome     string
	expectation string
}

type requestInfoKey struct{}

// noteMatch records the outcome of a request for the logging middleware.
// e may be nil.
func noteMatch(ctx context.Context, outcome string, e *nock.Expectation) {
	info, ok := ctx.Value(requestInfoKey{}).(*requestInfo)
	if !ok {
		return
	}
	info.outcome = outcome
	if e != nil {
		info.expectation = e.String()
	}
}

// Logger returns middleware that logs each proxied request once it
// completes: method, absolute URL, status, outcome (matched, forwarded,
// failed) and the expectation that answered it.
//
// Requests answered with a 4xx or 5xx status are logged at warn and error
// level.
//
// Example:
//
//	handler := httpserver.Logger(logger, "nock")(proxyHandler)
func Logger(logger zerolog.Logger, serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			event := logger.Debug()
			if wrapped.Status() >= 400 {
				event = logger.Warn()
			}
			if wrapped.Status() >= 500 {
				event = logger.Error()
			}

			event.
				Str("service", serviceName).
				Str("method", r.Method).
				Str("url", nock.AbsoluteURL(r)).
				Int("status", wrapped.Status()).
				Str("outcome", info.outcome).
				Dur("duration", time.Since(start)).
				Int("bytes", wrapped.BytesWritten())

			if info.expectation != "" {
				event.Str("nock", info.expectation)
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				event.Str("request_id", id)
			}

			event.Msg("request completed")
		})
	}
}

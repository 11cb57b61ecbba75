package httpclient

import (
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/nock/nock"
)

// debugLogger is the logger used when WithDebug is set without WithLogger.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// generateCurlCommand renders req as a cURL command line, so an unmatched
// request can be replayed by hand or turned into an expectation:
//
//	curl -X POST 'https://api.example.com/users' -H 'Content-Type: application/json' -d '{"name":"John"}'
func generateCurlCommand(req *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString("curl")
	if req.Method != http.MethodGet {
		b.WriteString(" -X " + req.Method)
	}
	b.WriteString(" " + shellQuote(req.URL.String()))

	for _, key := range slices.Sorted(maps.Keys(req.Header)) {
		for _, value := range req.Header[key] {
			b.WriteString(" -H " + shellQuote(key+": "+value))
		}
	}

	if len(body) > 0 {
		b.WriteString(" -d " + shellQuote(string(body)))
	}
	return b.String()
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// logUnmatched logs a request that no expectation matched.
func logUnmatched(logger zerolog.Logger, req *http.Request, body []byte) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("curl", generateCurlCommand(req, body)).
		Msg("nock: no expectation matched, sending request")
}

// logMatched logs a request answered by an expectation.
func logMatched(logger zerolog.Logger, req *http.Request, e *nock.Expectation, resp *http.Response) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("nock", e.String()).
		Int("status", resp.StatusCode).
		Int("remaining", e.Times()).
		Msg("nock: request matched")
}

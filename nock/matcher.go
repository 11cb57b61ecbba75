package nock

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// MatchResult is the outcome of the five checks for one expectation.
type MatchResult struct {
	Expectation *Expectation

	URL    bool
	Method bool
	Header bool
	Query  bool
	Body   bool
}

// Matched reports whether every check passed.
func (m MatchResult) Matched() bool {
	return m.URL && m.Method && m.Header && m.Query && m.Body
}

// Failed returns the names of the checks that did not pass.
func (m MatchResult) Failed() []string {
	var failed []string
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"url", m.URL},
		{"method", m.Method},
		{"header", m.Header},
		{"query", m.Query},
		{"body", m.Body},
	} {
		if !c.ok {
			failed = append(failed, c.name)
		}
	}
	return failed
}

// evaluate runs every check against e, so that a diagnostic logger sees the
// outcome of each one even when an earlier check already failed.
// Must be called with r.mu held.
func (r *Registry) evaluate(e *Expectation, req *Request) MatchResult {
	res := MatchResult{
		Expectation: e,
		URL:         r.checkURL(e, req),
		Method:      checkMethod(e, req),
		Header:      r.checkHeaders(e, req),
		Query:       r.checkQuery(e, req),
		Body:        r.checkBody(e, req),
	}
	if !res.Matched() {
		e.logf("Nock has not been matched :S")
	}
	return res
}

func (r *Registry) checkURL(e *Expectation, req *Request) bool {
	pattern := e.Pattern()
	e.logf("Trying to match requested url '%s' against nocked url '%s'", req.URL, pattern)

	match, err := MatchURL(req.URL, pattern)
	if err != nil {
		r.cfg.logger.Warn().Err(err).Str("nock_url", pattern).Msg("nock: invalid url pattern")
		e.logf("An error occurred while trying to match the url: %v", err)
	}
	e.logf("Url match: %t", match)
	return match
}

func checkMethod(e *Expectation, req *Request) bool {
	e.logf("Trying to match requested method '%s' against nocked method '%s'", req.Method, e.method)
	match := strings.EqualFold(string(e.method), req.Method)
	e.logf("Method match: %t", match)
	return match
}

func (r *Registry) checkHeaders(e *Expectation, req *Request) bool {
	if e.headerMode == HeaderNone {
		return true
	}

	header := requestHeader(e, req)
	if !r.headersMatch(e, header) {
		return false
	}

	if e.headerMode == HeaderExact && len(e.headers) != len(header) {
		e.logf("Exact header match is enabled and the number of nocked request headers and actual request headers did not match")
		return false
	}

	if e.headerFunc != nil {
		actual := header.Clone()
		match, err := safeCall(func() bool { return e.headerFunc(actual) })
		if err != nil {
			r.cfg.logger.Warn().Err(err).Str("nock", e.String()).Msg("nock: header matcher failed")
			e.logf("An error occurred while trying to check the request headers: %v", err)
		}
		e.logf("Custom header matcher result: %t", match)
		return match
	}

	e.logf("Header matcher result: true")
	return true
}

// requestHeader returns the headers e is checked against. Go keeps the
// Host header out of http.Header, so it is added back from req.Host when
// e asks for it.
func requestHeader(e *Expectation, req *Request) http.Header {
	if req.Host == "" || req.Header.Get("Host") != "" {
		return req.Header
	}
	for key := range e.headers {
		if strings.EqualFold(key, "Host") {
			h := req.Header.Clone()
			h.Set("Host", req.Host)
			return h
		}
	}
	return req.Header
}

func (r *Registry) headersMatch(e *Expectation, actual http.Header) bool {
	matched := true
	for _, key := range slices.Sorted(maps.Keys(e.headers)) {
		required := strings.Join(e.headers[key], ",")
		e.logf("Trying to match header '%s'", key)

		values, ok := r.lookupHeader(actual, key)
		if !ok {
			e.logf("Header '%s' could not be found", key)
			matched = false
			break
		}

		got := strings.Join(values, ",")
		if got != required {
			e.logf("Request header value '%s' did not match nocked request value '%s'.", got, required)
			matched = false
			break
		}
		e.logf("Request header value '%s' matched nocked request value '%s'.", got, required)
	}

	e.logf("Request headers matched: %t", matched)
	return matched
}

func (r *Registry) lookupHeader(h http.Header, key string) ([]string, bool) {
	if r.cfg.caseInsensitiveHeaders {
		for k, v := range h {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := h[http.CanonicalHeaderKey(key)]; ok {
		return v, true
	}
	v, ok := h[key]
	return v, ok
}

func (r *Registry) checkQuery(e *Expectation, req *Request) bool {
	hasQuery := len(req.Query) > 0

	if e.queryMode == QueryNone {
		// A pattern that spells out its query string already constrained
		// it through the url check.
		if !hasQuery || strings.Contains(e.Pattern(), "?") {
			return true
		}
		e.logf("A query string has been specified in the request url, but query matcher has not been defined")
		e.logf("Query matcher result: false")
		return false
	}

	switch e.queryMode {
	case QueryBool:
		e.logf("Query matcher result: %t", e.queryResult)
		return e.queryResult

	case QueryNameValue, QueryNameValueExact:
		if !queryMatch(e, req.Query) {
			return false
		}
		if e.queryMode == QueryNameValueExact && len(e.query) != len(req.Query) {
			e.logf("Exact query match is enabled and the number of nocked request query keys and actual request query keys did not match")
			return false
		}

	case QueryFunc:
		details := QueryDetails{
			RequestURL: stripQuery(req.URL),
			Query:      cloneValues(req.Query),
		}
		match, err := safeCall(func() bool { return e.queryFunc(details) })
		if err != nil {
			r.cfg.logger.Warn().Err(err).Str("nock", e.String()).Msg("nock: query matcher failed")
			e.logf("An error occurred while trying to check the query: %v", err)
		}
		e.logf("Query matcher result: %t", match)
		return match
	}

	e.logf("Query matcher result: true")
	return true
}

func queryMatch(e *Expectation, actual url.Values) bool {
	matched := true
	for _, key := range slices.Sorted(maps.Keys(e.query)) {
		required := strings.Join(e.query[key], ",")
		e.logf("Trying to match query '%s'", key)

		values, ok := actual[key]
		if !ok {
			e.logf("Query '%s' could not be found", key)
			matched = false
			break
		}

		got := strings.Join(values, ",")
		if got != required {
			e.logf("Query value '%s' did not match nocked request value '%s'.", got, required)
			matched = false
			break
		}
		e.logf("Query value '%s' matched nocked request value '%s'.", got, required)
	}

	e.logf("Query values matched: %t", matched)
	return matched
}

func (r *Registry) checkBody(e *Expectation, req *Request) bool {
	if e.body == nil {
		e.logf("Body matcher result: true")
		return true
	}

	match, err := e.body.match(req.Body, e.logf)
	if err != nil {
		r.cfg.logger.Warn().Err(err).Str("nock", e.String()).Msg("nock: body matcher failed")
		e.logf("An error occurred while trying to check the request body: %v", err)
	}
	e.logf("Body matcher result: %t", match)
	return match
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return url.Values{}
	}
	return url.Values(http.Header(v).Clone())
}

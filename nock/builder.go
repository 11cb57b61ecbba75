package nock

import (
	"net/http"
	"net/url"
	"strings"
)

// Nock builds one expectation. It is created by Registry.New (or the
// package level New), constrained with the matcher methods and registered
// by one of the Reply methods.
//
// Builder methods never panic and never return errors mid-chain: the first
// configuration error is kept and reported by Err, and a builder with an
// error never registers anything.
//
//	n := nock.New("https://api.example.com").
//	    Get("/users/*").
//	    MatchHeader("Authorization", "Bearer token").
//	    Reply(http.StatusOK, `{"id":1}`)
//	require.NoError(t, n.Err())
type Nock struct {
	reg *Registry

	url    string
	path   string
	method Method
	body   BodyMatcher

	headerMode HeaderMode
	headers    http.Header
	headerFunc func(http.Header) bool

	queryMode   QueryMode
	query       url.Values
	queryResult bool
	queryFunc   func(QueryDetails) bool

	logger LogFunc

	expectation *Expectation
	err         error
}

// New starts a builder for requests to baseURL, which must not be blank or
// end with '/'. The first builder created from the registry activates it
// and starts its interceptor.
func (r *Registry) New(baseURL string) *Nock {
	n := &Nock{
		reg:     r,
		url:     baseURL,
		headers: make(http.Header),
	}

	switch {
	case strings.TrimSpace(baseURL) == "":
		n.setErr(invalidArgument("url must be defined"))
	case strings.HasSuffix(baseURL, "/"):
		n.setErr(invalidArgument("the url must not end with a '/'"))
	}

	if n.err != nil {
		return n
	}
	if err := r.ensureStarted(); err != nil {
		n.setErr(err)
	}
	return n
}

// Err returns the first configuration error recorded by the builder.
func (n *Nock) Err() error {
	return n.err
}

func (n *Nock) setErr(err error) {
	if n.err == nil {
		n.err = err
	}
}

// Expectation returns the registered expectation, or nil before Reply.
func (n *Nock) Expectation() *Expectation {
	return n.expectation
}

// Done reports whether the expectation has been matched as many times as
// it was registered for.
func (n *Nock) Done() bool {
	return n.expectation != nil && n.expectation.IsDone() && n.expectation.Times() == 0
}

// =============================================================================
// Action methods
// =============================================================================

// Get expects a GET request to path. An optional BodyMatcher constrains
// the request body.
func (n *Nock) Get(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodGet, path, body)
}

// Post expects a POST request to path.
func (n *Nock) Post(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodPost, path, body)
}

// Put expects a PUT request to path.
func (n *Nock) Put(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodPut, path, body)
}

// Delete expects a DELETE request to path.
func (n *Nock) Delete(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodDelete, path, body)
}

// Head expects a HEAD request to path.
func (n *Nock) Head(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodHead, path, body)
}

// Patch expects a PATCH request to path.
func (n *Nock) Patch(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodPatch, path, body)
}

// Merge expects a MERGE request to path.
func (n *Nock) Merge(path string, body ...BodyMatcher) *Nock {
	return n.setMethod(MethodMerge, path, body)
}

func (n *Nock) setMethod(method Method, path string, body []BodyMatcher) *Nock {
	switch {
	case strings.TrimSpace(path) == "":
		n.setErr(invalidArgument("path must be defined"))
		return n
	case !strings.HasPrefix(path, "/"):
		n.setErr(invalidArgument("path must start with a '/'"))
		return n
	case n.method != MethodNotSet:
		n.setErr(ErrMethodAlreadySet)
		return n
	case len(body) > 1:
		n.setErr(invalidArgument("at most one body matcher may be given"))
		return n
	}

	if len(body) == 1 {
		if body[0] == nil || !body[0].valid() {
			n.setErr(invalidArgument("body matcher function must be defined"))
			return n
		}
		n.body = body[0]
	}

	n.path = path
	n.method = method
	return n
}

// =============================================================================
// Header matchers
// =============================================================================

// ContentType requires the Content-Type header to equal contentType.
func (n *Nock) ContentType(contentType string) *Nock {
	return n.MatchHeader("Content-Type", contentType)
}

// UserAgent requires the User-Agent header to equal userAgent.
func (n *Nock) UserAgent(userAgent string) *Nock {
	return n.MatchHeader("User-Agent", userAgent)
}

// Referer requires the Referer header to equal referer.
func (n *Nock) Referer(referer string) *Nock {
	return n.MatchHeader("Referer", referer)
}

// MatchHeader requires the request to carry header name with value.
// Other headers are allowed.
func (n *Nock) MatchHeader(name, value string) *Nock {
	if name == "" {
		n.setErr(invalidArgument("header name must be defined"))
		return n
	}
	if n.headerMode == HeaderNone {
		n.headerMode = HeaderMatch
	}
	n.headers[name] = append(n.headers[name], value)
	return n
}

// MatchHeaders requires every header of h. With exact set, the request
// must carry no other header.
func (n *Nock) MatchHeaders(h http.Header, exact bool) *Nock {
	if h == nil {
		n.setErr(invalidArgument("request headers must be defined"))
		return n
	}
	n.headerMode = HeaderMatch
	if exact {
		n.headerMode = HeaderExact
	}
	n.headers = h.Clone()
	return n
}

// MatchHeadersFunc matches when fn reports true for the request headers.
// Any header declared with MatchHeader is checked first.
func (n *Nock) MatchHeadersFunc(fn func(h http.Header) bool) *Nock {
	if fn == nil {
		n.setErr(invalidArgument("request headers matcher function must be defined"))
		return n
	}
	if n.headerMode == HeaderNone {
		n.headerMode = HeaderMatch
	}
	n.headerFunc = fn
	return n
}

// =============================================================================
// Query matchers
// =============================================================================

// Query answers the query check with result, whatever the request query.
func (n *Nock) Query(result bool) *Nock {
	n.queryMode = QueryBool
	n.queryResult = result
	return n
}

// QueryValues requires every parameter of v. With exact set, the request
// must carry no other parameter.
func (n *Nock) QueryValues(v url.Values, exact bool) *Nock {
	if v == nil {
		n.setErr(invalidArgument("query parameters must be defined"))
		return n
	}
	n.queryMode = QueryNameValue
	if exact {
		n.queryMode = QueryNameValueExact
	}
	n.query = cloneValues(v)
	return n
}

// QueryFunc matches when fn reports true for the request query.
func (n *Nock) QueryFunc(fn func(q QueryDetails) bool) *Nock {
	if fn == nil {
		n.setErr(invalidArgument("query matcher function must be defined"))
		return n
	}
	n.queryMode = QueryFunc
	n.queryFunc = fn
	return n
}

// =============================================================================
// Replies
// =============================================================================

// Reply registers the expectation with a literal response. Headers are
// merged in order.
func (n *Nock) Reply(status int, body string, header ...http.Header) *Nock {
	h := make(http.Header)
	for _, src := range header {
		for k, v := range src {
			h[k] = append(h[k], v...)
		}
	}
	return n.build(reply{kind: ReplyBody, status: status, body: body, header: h})
}

// ReplyFunc registers the expectation with a response produced by fn from
// the matched request.
func (n *Nock) ReplyFunc(status int, fn ResponderFunc) *Nock {
	if fn == nil {
		n.setErr(invalidArgument("response creator function is invalid"))
		return n
	}
	return n.build(reply{kind: ReplyGenerator, status: status, responder: fn})
}

// ReplyError registers the expectation so that a matching request fails
// with err.
func (n *Nock) ReplyError(err error) *Nock {
	if err == nil {
		n.setErr(invalidArgument("reply error must be defined"))
		return n
	}
	return n.build(reply{kind: ReplyError, err: err})
}

// ReplyResponse registers the expectation with a pre-built response. The
// body of resp is read once and replayed on every match.
func (n *Nock) ReplyResponse(resp *http.Response) *Nock {
	if resp == nil {
		n.setErr(invalidArgument("response must be defined"))
		return n
	}
	if n.err != nil || n.expectation != nil {
		return n.build(reply{kind: ReplyCustom})
	}

	raw, err := bufferResponse(resp)
	if err != nil {
		n.setErr(invalidArgument("response body could not be read: " + err.Error()))
		return n
	}
	return n.build(reply{kind: ReplyCustom, custom: resp, rawCustom: raw})
}

func (n *Nock) build(r reply) *Nock {
	if n.expectation != nil {
		n.setErr(ErrAlreadyReplied)
		return n
	}
	if n.err != nil {
		return n
	}
	if n.method == MethodNotSet {
		n.setErr(ErrPathNotSet)
		return n
	}

	e := &Expectation{
		url:         n.url,
		path:        n.path,
		method:      n.method,
		body:        n.body,
		headerMode:  n.headerMode,
		headers:     n.headers,
		headerFunc:  n.headerFunc,
		queryMode:   n.queryMode,
		query:       n.query,
		queryResult: n.queryResult,
		queryFunc:   n.queryFunc,
		reply:       r,
	}
	e.times.Store(1)
	e.setLogger(n.logger)

	n.reg.Add(e)
	n.expectation = e
	return n
}

// =============================================================================
// Lifecycle
// =============================================================================

// Times lets the expectation match n times instead of once. It must be
// called after Reply and n must be at least 2.
func (n *Nock) Times(times int) *Nock {
	if n.expectation == nil {
		n.setErr(ErrNotReplied)
		return n
	}
	if times < 2 {
		n.setErr(invalidArgument("number of times must be greater than 1"))
		return n
	}

	n.reg.mu.Lock()
	n.expectation.times.Store(int64(times))
	n.reg.mu.Unlock()
	return n
}

// Log attaches a sink that narrates every check made against the
// expectation. fn runs under the registry lock; see LogFunc.
func (n *Nock) Log(fn LogFunc) *Nock {
	if fn == nil {
		n.setErr(invalidArgument("a logger must be defined"))
		return n
	}
	n.logger = fn
	if n.expectation != nil {
		n.expectation.setLogger(fn)
	}
	return n
}

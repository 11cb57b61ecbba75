package nock

import (
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
)

// RequestDetails is passed to a ResponderFunc.
type RequestDetails struct {
	// URL is the request URL without its query string.
	URL    string
	Header http.Header
	Query  url.Values
	Body   string
}

// ResponseDetails is the output of a ResponderFunc. The status code comes
// from the ReplyFunc call that registered the responder.
type ResponseDetails struct {
	Body   string
	Header http.Header
}

// ResponderFunc produces a response from the intercepted request.
type ResponderFunc func(req RequestDetails) (ResponseDetails, error)

// QueryDetails is passed to a query predicate registered with QueryFunc.
type QueryDetails struct {
	// RequestURL is the request URL without its query string.
	RequestURL string
	Query      url.Values
}

type reply struct {
	kind      ReplyKind
	status    int
	body      string
	header    http.Header
	responder ResponderFunc
	custom    *http.Response
	rawCustom []byte
	err       error
}

// Expectation is a registered request pattern paired with its reply.
//
// Expectations are created by the terminal Reply call of a Nock builder and
// are owned by their Registry from then on. The remaining count is
// decremented by the registry on every match; the expectation is evicted
// when it reaches zero.
type Expectation struct {
	url    string
	path   string
	method Method

	body BodyMatcher

	headerMode HeaderMode
	headers    http.Header
	headerFunc func(http.Header) bool

	queryMode   QueryMode
	query       url.Values
	queryResult bool
	queryFunc   func(QueryDetails) bool

	reply reply

	times atomic.Int64
	done  atomic.Bool

	logger atomic.Pointer[LogFunc]
}

// URL returns the base URL the expectation was created with.
func (e *Expectation) URL() string { return e.url }

// Path returns the registered path pattern.
func (e *Expectation) Path() string { return e.path }

// Pattern returns the full URL pattern matched against requests.
func (e *Expectation) Pattern() string { return e.url + e.path }

// Method returns the registered HTTP method.
func (e *Expectation) Method() Method { return e.method }

// Reply returns the reply variant of the expectation.
func (e *Expectation) Reply() ReplyKind { return e.reply.kind }

// Times returns the number of matches the expectation still accepts.
func (e *Expectation) Times() int { return int(e.times.Load()) }

// IsDone reports whether the expectation has been fully consumed.
func (e *Expectation) IsDone() bool { return e.done.Load() }

func (e *Expectation) String() string {
	return fmt.Sprintf("%s %s%s", e.method, e.url, e.path)
}

func (e *Expectation) setLogger(fn LogFunc) {
	if fn == nil {
		e.logger.Store(nil)
		return
	}
	e.logger.Store(&fn)
}

// logf writes a diagnostic line to the expectation's LogFunc, if any.
// A panicking LogFunc is ignored.
func (e *Expectation) logf(format string, args ...any) {
	fn := e.logger.Load()
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	(*fn)("nock: " + fmt.Sprintf(format, args...))
}

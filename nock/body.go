package nock

import (
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"
)

// BodyMatcher constrains the request body of an expectation. It is one of
// Body, BodyFunc or BodyJSON.
type BodyMatcher interface {
	Mode() BodyMode
	match(body string, logf func(format string, args ...any)) (bool, error)
	valid() bool
}

type literalBody string

// Body matches a request whose body is exactly s.
func Body(s string) BodyMatcher {
	return literalBody(s)
}

func (b literalBody) Mode() BodyMode { return BodyLiteral }
func (b literalBody) valid() bool    { return true }

func (b literalBody) match(body string, logf func(string, ...any)) (bool, error) {
	if body != string(b) {
		logf("The requested body '%s' does not match the nocked request body '%s'", body, string(b))
		return false, nil
	}
	return true, nil
}

type funcBody func(string) bool

// BodyFunc matches a request when fn reports true for the raw body.
// A panicking fn is a non-match.
func BodyFunc(fn func(body string) bool) BodyMatcher {
	return funcBody(fn)
}

func (b funcBody) Mode() BodyMode { return BodyStringFunc }
func (b funcBody) valid() bool    { return b != nil }

func (b funcBody) match(body string, _ func(string, ...any)) (bool, error) {
	return safeCall(func() bool { return b(body) })
}

type typedBody[T any] struct {
	fn func(T) bool
}

// BodyJSON decodes the request body into a T and matches when fn reports
// true. A body that cannot be decoded is passed to fn as the zero value of T.
//
//	nock.New("https://api.example.com").
//	    Post("/funds", nock.BodyJSON(func(req FundsRequest) bool {
//	        return req.Action == "AddFunds"
//	    })).
//	    Reply(http.StatusOK, `{"result":"Added"}`)
func BodyJSON[T any](fn func(v T) bool) BodyMatcher {
	return typedBody[T]{fn: fn}
}

func (b typedBody[T]) Mode() BodyMode { return BodyTypedFunc }
func (b typedBody[T]) valid() bool    { return b.fn != nil }

func (b typedBody[T]) match(body string, logf func(string, ...any)) (bool, error) {
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		var zero T
		v = zero
		logf("The request body could not be deserialized into type: %v. %v", reflect.TypeFor[T](), err)
	}
	return safeCall(func() bool { return b.fn(v) })
}

// safeCall runs a user predicate and converts a panic into an error.
func safeCall(fn func() bool) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("%w: %v", ErrPredicatePanic, rec)
		}
	}()
	return fn(), nil
}

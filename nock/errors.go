package nock

import (
	"errors"
	"fmt"
)

// Configuration errors recorded by the builder. They are returned by
// Nock.Err and can be checked with errors.Is.
var (
	// ErrInvalidArgument reports a missing or malformed builder argument.
	ErrInvalidArgument = errors.New("nock: invalid argument")

	// ErrMethodAlreadySet is returned when an action method (Get, Post, ...)
	// is called twice on the same builder.
	ErrMethodAlreadySet = errors.New("nock: the method of the nock has already been set")

	// ErrAlreadyReplied is returned when a Reply variant is called twice.
	ErrAlreadyReplied = errors.New("nock: the nock has already been built")

	// ErrPathNotSet is returned when Reply is called before an action method.
	ErrPathNotSet = errors.New("nock: path must be defined before reply")

	// ErrNotReplied is returned when Times is called before Reply.
	ErrNotReplied = errors.New("nock: call an action method (e.g. Get, Post) and Reply first")

	// ErrInterceptorRunning is returned when the interceptor of a started
	// registry is replaced.
	ErrInterceptorRunning = errors.New("nock: interceptor already started")
)

// Match-time errors. They never escape a matching pass; they are logged
// and turn the failing predicate into a non-match.
var (
	// ErrPredicatePanic wraps a panic raised by a user supplied predicate.
	ErrPredicatePanic = errors.New("nock: matcher function panicked")

	// ErrResponderFailed wraps an error returned by a ResponderFunc.
	ErrResponderFailed = errors.New("nock: response creator failed")
)

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

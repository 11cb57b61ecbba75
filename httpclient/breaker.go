package httpclient

import (
	"errors"
	"net"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerClassifier determines if a forwarded request counts as a failure
// for the circuit breaker.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig holds the forwarder circuit breaker configuration.
//
// While the breaker is open, forwarded requests fail immediately with
// gobreaker.ErrOpenState instead of waiting on a destination that is down.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed through while
	// half-open. If 0, one request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which the
	// counts are cleared. If 0, counts are never cleared while closed.
	Interval time.Duration

	// Timeout is the period of the open state before becoming half-open.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the
	// failure ratio is considered.
	FailureThreshold uint32

	// FailureRatio trips the breaker once reached (0.0 - 1.0).
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after that many failures in a
	// row. If 0, this rule is disabled.
	ConsecutiveFailures uint32

	// Classifier determines which results count as failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is invoked when the breaker state changes.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a configuration for a local circuit breaker.
//
//   - Interval: 10s
//   - Timeout: 10s
//   - FailureThreshold: 20
//   - FailureRatio: 0.5
//   - ConsecutiveFailures: 5
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DefaultBreakerClassifier counts 5xx answers and failures to reach the
// destination against the breaker.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) || isTransient(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

// readyToTrip builds the gobreaker trip rule from the configuration.
func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureThreshold > 0 && counts.Requests < c.FailureThreshold {
		return false
	}
	if c.FailureRatio > 0 && counts.TotalFailures > 0 {
		ratio := float64(counts.TotalFailures) / float64(counts.Requests)
		return ratio >= c.FailureRatio
	}
	return false
}

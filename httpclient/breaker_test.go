package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestDefaultBreakerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig()

	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, uint32(20), cfg.FailureThreshold)
	assert.InDelta(t, 0.5, cfg.FailureRatio, 0.0001)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	assert.NotNil(t, cfg.Classifier)
}

func TestDefaultBreakerClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "given 200, then not a failure", resp: &http.Response{StatusCode: http.StatusOK}, want: false},
		{name: "given 404, then not a failure", resp: &http.Response{StatusCode: http.StatusNotFound}, want: false},
		{name: "given 502, then a failure", resp: &http.Response{StatusCode: http.StatusBadGateway}, want: true},
		{name: "given connection refused, then a failure", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: true},
		{name: "given non network error, then not a failure", err: errors.New("bad request body"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DefaultBreakerClassifier(tt.resp, tt.err))
		})
	}
}

func TestBreakerConfig_ReadyToTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    BreakerConfig
		counts gobreaker.Counts
		want   bool
	}{
		{
			name:   "given consecutive failures reached, then trips",
			cfg:    BreakerConfig{ConsecutiveFailures: 3},
			counts: gobreaker.Counts{Requests: 3, ConsecutiveFailures: 3, TotalFailures: 3},
			want:   true,
		},
		{
			name:   "given too few requests for the ratio, then stays closed",
			cfg:    BreakerConfig{FailureThreshold: 10, FailureRatio: 0.5},
			counts: gobreaker.Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4},
			want:   false,
		},
		{
			name:   "given failure ratio reached, then trips",
			cfg:    BreakerConfig{FailureThreshold: 10, FailureRatio: 0.5},
			counts: gobreaker.Counts{Requests: 10, TotalFailures: 5},
			want:   true,
		},
		{
			name:   "given failure ratio not reached, then stays closed",
			cfg:    BreakerConfig{FailureThreshold: 10, FailureRatio: 0.5},
			counts: gobreaker.Counts{Requests: 10, TotalFailures: 4},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.readyToTrip(tt.counts))
		})
	}
}

func TestNewCircuitBreakerTransport_NilConfig(t *testing.T) {
	t.Parallel()

	next := http.DefaultTransport
	assert.Same(t, next, newCircuitBreakerTransport(next, nil, "x", nil))
}

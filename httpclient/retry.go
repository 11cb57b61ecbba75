package httpclient

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig holds the forwarder retry configuration.
// Use DefaultRetryConfig() for balanced defaults, then modify as needed.
//
// Retries use exponential backoff with jitter. They only apply to requests
// that no expectation matched and that the local proxy forwards to the
// real destination.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// The initial request is not counted as a retry.
	// Default: 3
	MaxRetries uint

	// InitialInterval is the first backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval.
	// Default: 2s
	MaxInterval time.Duration

	// MaxElapsedTime is the total time budget for all attempts.
	// 0 means only MaxRetries applies.
	// Default: 10s
	MaxElapsedTime time.Duration

	// Multiplier controls exponential growth of backoff intervals.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes each interval by ±JitterFactor.
	// Default: 0.5
	JitterFactor float64

	// Classifier decides whether a result is retried.
	// Default: DefaultClassifier
	Classifier RetryClassifier
}

// Default values for RetryConfig.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
	DefaultMaxElapsedTime  = 10 * time.Second
	DefaultMultiplier      = 2.0
	DefaultJitterFactor    = 0.5
)

// DefaultRetryConfig returns defaults suited to a test proxy: a few quick
// retries within a short time budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		Multiplier:      DefaultMultiplier,
		JitterFactor:    DefaultJitterFactor,
		Classifier:      DefaultClassifier,
	}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// ExponentialBackOffFromConfig creates a cenkalti/backoff ExponentialBackOff
// from a RetryConfig, ensuring jitter is always applied.
func ExponentialBackOffFromConfig(cfg RetryConfig) *backoff.ExponentialBackOff {
	jitterFactor := cfg.JitterFactor
	if jitterFactor <= 0 {
		jitterFactor = DefaultJitterFactor
	}

	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = jitterFactor
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.Multiplier > 0 {
		b.Multiplier = cfg.Multiplier
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.Reset()
	return b
}

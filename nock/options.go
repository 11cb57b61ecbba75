package nock

import "github.com/rs/zerolog"

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	logger                 zerolog.Logger
	caseInsensitiveHeaders bool
	recorder               *Recorder
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		logger: defaultLogger,
	}
}

// WithLogger sets the logger used for registry diagnostics: predicate
// panics, malformed URL patterns and recorder output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithCaseInsensitiveHeaders makes required header names match request
// header names regardless of case. By default names are compared in their
// canonical form, so "content-type" and "Content-Type" are the same key
// but a non-canonical key stored verbatim in the request is not.
func WithCaseInsensitiveHeaders() Option {
	return func(c *registryConfig) {
		c.caseInsensitiveHeaders = true
	}
}

// WithRecorder attaches a Recorder that sees every request offered to Match.
func WithRecorder(r *Recorder) Option {
	return func(c *registryConfig) {
		c.recorder = r
	}
}

package nock

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Interceptor is an interception point whose lifetime is tied to a
// Registry. It is started when the first expectation is built from the
// registry and stopped by Registry.Stop.
type Interceptor interface {
	Start() error
	Stop(ctx context.Context) error
}

// Stats is a point-in-time view of a registry's counters.
type Stats struct {
	Pending int
	Matched int64
	Missed  int64
}

// Registry is the ordered collection of pending expectations.
//
// A single mutex guards the collection and spans the whole matching pass,
// so two concurrent requests can never both consume a single-use
// expectation. Expectations are evaluated in registration order and the
// first full match wins.
type Registry struct {
	mu           sync.Mutex
	expectations []*Expectation

	active atomic.Bool

	matched atomic.Int64
	missed  atomic.Int64

	cfg registryConfig

	lifecycleMu sync.Mutex
	interceptor Interceptor
	started     bool
}

// NewRegistry creates an empty, inactive registry. It becomes active when
// the first expectation is built from it.
func NewRegistry(opts ...Option) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{cfg: cfg}
}

// Recorder returns the attached recorder, or nil.
func (r *Registry) Recorder() *Recorder {
	return r.cfg.recorder
}

// Add appends e to the registry. Overlapping expectations are allowed and
// resolved by registration order.
func (r *Registry) Add(e *Expectation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expectations = append(r.expectations, e)
}

// Remove removes e from the registry and reports whether it was present.
func (r *Registry) Remove(e *Expectation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(e)
}

func (r *Registry) removeLocked(e *Expectation) bool {
	i := slices.Index(r.expectations, e)
	if i < 0 {
		return false
	}
	r.expectations = slices.Delete(r.expectations, i, i+1)
	return true
}

// ClearAll removes every pending expectation. The interceptor, if any, is
// left running.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.expectations)
	r.expectations = r.expectations[:0]
}

// Len returns the number of pending expectations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expectations)
}

// Pending returns a snapshot of the pending expectations in registration
// order.
func (r *Registry) Pending() []*Expectation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.expectations)
}

// Active reports whether interception is enabled. An inactive registry
// lets every request through to the real transport.
func (r *Registry) Active() bool {
	return r.active.Load()
}

// SetActive enables or disables interception.
func (r *Registry) SetActive(active bool) {
	r.active.Store(active)
}

// Stats returns the registry counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Pending: r.Len(),
		Matched: r.matched.Load(),
		Missed:  r.missed.Load(),
	}
}

// Match finds the first pending expectation satisfied by req, consumes one
// of its remaining matches and returns it. An expectation whose count
// reaches zero is marked done and evicted. Match returns nil when nothing
// matches; predicate failures are never returned as errors.
func (r *Registry) Match(req *Request) *Expectation {
	if rec := r.cfg.recorder; rec != nil {
		rec.RecordRequest(req)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.expectations {
		if !r.evaluate(e, req).Matched() {
			continue
		}

		e.logf("Nock has been matched :)")
		remaining := e.times.Add(-1)
		e.logf("Nocked request Times has been decremented to: %d", remaining)
		if remaining < 1 {
			e.done.Store(true)
			r.removeLocked(e)
		}
		r.matched.Add(1)
		return e
	}

	r.missed.Add(1)
	return nil
}

// Explain evaluates req against every pending expectation without
// consuming any of them. The result lists, per expectation, which of the
// five checks passed.
func (r *Registry) Explain(req *Request) []MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]MatchResult, 0, len(r.expectations))
	for _, e := range r.expectations {
		results = append(results, r.evaluate(e, req))
	}
	return results
}

// UseInterceptor registers the interception point started with the
// registry. It fails once the current interceptor has been started.
func (r *Registry) UseInterceptor(i Interceptor) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.started {
		return ErrInterceptorRunning
	}
	r.interceptor = i
	return nil
}

// ensureStarted activates the registry and starts its interceptor once.
// A start failure is returned on every call until a start succeeds.
func (r *Registry) ensureStarted() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	r.active.Store(true)
	if r.started || r.interceptor == nil {
		return nil
	}
	if err := r.interceptor.Start(); err != nil {
		return err
	}
	r.started = true
	return nil
}

// Stop stops the interceptor, if it was started, and deactivates the
// registry. Pending expectations are kept. Stop is idempotent.
func (r *Registry) Stop(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	r.active.Store(false)
	if !r.started {
		return nil
	}
	r.started = false
	return r.interceptor.Stop(ctx)
}

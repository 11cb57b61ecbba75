package nock

import "context"

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package level
// functions.
func Default() *Registry {
	return defaultRegistry
}

// New starts a builder on the default registry.
func New(baseURL string) *Nock {
	return defaultRegistry.New(baseURL)
}

// ClearAll removes every pending expectation from the default registry.
func ClearAll() {
	defaultRegistry.ClearAll()
}

// RemoveInterceptor removes the expectation built by n from the registry
// it was built on.
func RemoveInterceptor(n *Nock) bool {
	if n == nil || n.expectation == nil {
		return false
	}
	return n.reg.Remove(n.expectation)
}

// Stop stops the default registry's interceptor and deactivates it.
func Stop(ctx context.Context) error {
	return defaultRegistry.Stop(ctx)
}

package httpserver

import "net/http"

// Middleware is a function that wraps an http.Handler.
//
// Middleware functions are composed together using Chain() to create
// the processing pipeline in front of the proxy handler.
//
// Example:
//
//	func Tagging(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        r.Header.Set("X-Through-Nock", "1")
//	        next.ServeHTTP(w, r)
//	    })
//	}
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware into a single middleware.
//
// Middleware are applied in the order provided. The first middleware
// is the outermost (runs first on request, last on response).
//
// Example:
//
//	handler := httpserver.Chain(
//	    httpserver.RequestID(),
//	    httpserver.Recovery(logger),
//	)(proxyHandler)
//
// Request flow:
//
//	RequestID -> Recovery -> proxyHandler -> Recovery -> RequestID
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		// Apply in reverse order so first middleware is outermost
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

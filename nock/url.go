package nock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// separator is the only character a '*' of a URL pattern does not match.
const separator = ' '

// patternCache holds compiled wildcard patterns keyed by the raw pattern.
var patternCache sync.Map

// MatchURL reports whether requestURL matches pattern.
//
// A pattern without '*' must equal the request URL byte for byte; when the
// pattern carries no query string the request's query is ignored. A '*'
// matches any run of non-space characters, across path segments and inside
// query values. A pattern that cannot be compiled never matches and the
// compile error is returned for logging.
func MatchURL(requestURL, pattern string) (bool, error) {
	if !strings.Contains(pattern, "*") {
		if !strings.Contains(pattern, "?") {
			requestURL = stripQuery(requestURL)
		}
		return requestURL == pattern, nil
	}

	if requestURL == pattern {
		return true, nil
	}

	g, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(requestURL), nil
}

// compilePattern turns a URL pattern into a glob where only '*' is special.
func compilePattern(pattern string) (glob.Glob, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(glob.Glob), nil
	}

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	expr := strings.Join(parts, "*")
	// "**" would also match the separator.
	for strings.Contains(expr, "**") {
		expr = strings.ReplaceAll(expr, "**", "*")
	}

	g, err := glob.Compile(expr, separator)
	if err != nil {
		return nil, fmt.Errorf("nock: compile url pattern %q: %w", pattern, err)
	}

	actual, _ := patternCache.LoadOrStore(pattern, g)
	return actual.(glob.Glob), nil
}

// stripQuery removes the query string (and anything after it) from u.
func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

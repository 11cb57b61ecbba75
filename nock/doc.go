// Package nock registers expected outbound HTTP requests and answers them
// with canned responses.
//
// A test describes a request with the fluent builder and registers it with
// one of the Reply methods. Interception points (the httpclient Transport
// and the httpserver Listener) hand every outbound request to
// Registry.Match; the first pending expectation satisfying all five checks
// (url, method, headers, query, body) answers it and loses one of its
// remaining matches. An exhausted expectation is evicted.
//
// # Quick Start
//
//	reg := nock.NewRegistry()
//	client := httpclient.New(httpclient.WithRegistry(reg))
//
//	n := reg.New("https://api.example.com").
//	    Get("/users/1").
//	    Reply(http.StatusOK, `{"id":1}`)
//	require.NoError(t, n.Err())
//
//	resp, err := client.Get("https://api.example.com/users/1")
//	require.NoError(t, err)
//	assert.True(t, n.Done())
//
// # URL Patterns
//
// The base URL and path are joined into a pattern. Without '*' the pattern
// must equal the request URL; a pattern without a query string ignores the
// request's query in that comparison. Each '*' matches any run of non-space
// characters, across path segments and inside query values:
//
//	reg.New("https://api.example.com").Get("/*/fish/*/peas")
//	reg.New("https://api.example.com").Get("/fish?tags=*&peas=1")
//
// # Queries
//
// A request carrying a query string does not match an expectation with no
// query constraint, unless the pattern itself spells out a query. Use
// Query(true), QueryValues or QueryFunc to accept it.
//
// # Diagnostics
//
// Log attaches a LogFunc that narrates each check, and Registry.Explain
// reports which checks failed for every pending expectation.
package nock

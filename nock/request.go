package nock

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Request is the view of an intercepted HTTP request the matcher works on.
// Interception points build it with NewRequest.
type Request struct {
	// URL is the absolute request URL, query string included.
	URL    string
	// Host is the request's Host header, or the URL host when unset.
	Host   string
	Method string
	Header http.Header
	Query  url.Values
	Body   string
}

// NewRequest captures req for matching. The body is read in full and
// replaced with an equivalent reader so req can still be sent on.
func NewRequest(req *http.Request) (*Request, error) {
	body, err := drainBody(req)
	if err != nil {
		return nil, fmt.Errorf("nock: read request body: %w", err)
	}

	header := req.Header
	if header == nil {
		header = make(http.Header)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	return &Request{
		URL:    AbsoluteURL(req),
		Host:   host,
		Method: req.Method,
		Header: header,
		Query:  req.URL.Query(),
		Body:   string(body),
	}, nil
}

// AbsoluteURL returns the absolute URL of req. Requests received by a
// server in origin form are resolved against their Host header.
func AbsoluteURL(req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, nil
}

package nock

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// BuildResponse produces the reply of a matched expectation.
//
// A custom reply is returned as a fresh copy of the stored response. An
// error reply returns the configured error unchanged. A generator reply
// invokes the ResponderFunc; its error is wrapped in ErrResponderFailed and
// left to the caller, and a panic inside it propagates. A body reply is
// built from the stored status, body and headers.
func BuildResponse(e *Expectation, req *Request) (*http.Response, error) {
	switch e.reply.kind {
	case ReplyCustom:
		return cloneCustom(e.reply.custom, e.reply.rawCustom), nil

	case ReplyError:
		return nil, e.reply.err

	case ReplyGenerator:
		details, err := e.reply.responder(RequestDetails{
			URL:    stripQuery(req.URL),
			Header: req.Header.Clone(),
			Query:  cloneValues(req.Query),
			Body:   req.Body,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResponderFailed, err)
		}
		return newResponse(e.reply.status, details.Body, details.Header), nil

	default:
		return newResponse(e.reply.status, e.reply.body, e.reply.header), nil
	}
}

func newResponse(status int, body string, header http.Header) *http.Response {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		ContentLength: int64(len(body)),
	}
}

// bufferResponse reads the body of resp so the response can be served more
// than once.
func bufferResponse(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func cloneCustom(resp *http.Response, body []byte) *http.Response {
	clone := *resp
	clone.Header = resp.Header.Clone()
	if clone.Header == nil {
		clone.Header = make(http.Header)
	}
	if clone.Status == "" {
		clone.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if clone.ProtoMajor == 0 {
		clone.Proto, clone.ProtoMajor, clone.ProtoMinor = "HTTP/1.1", 1, 1
	}
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	return &clone
}

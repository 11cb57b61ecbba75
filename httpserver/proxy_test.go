package httpserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveHopByHopHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{
		"Connection":       {"keep-alive, X-Private"},
		"X-Private":        {"secret"},
		"Keep-Alive":       {"timeout=5"},
		"Proxy-Connection": {"keep-alive"},
		"Te":               {"trailers"},
		"Upgrade":          {"h2c"},
		"Content-Type":     {"application/json"},
	}

	removeHopByHopHeaders(h)

	assert.Equal(t, http.Header{"Content-Type": {"application/json"}}, h)
}

func TestTranslateRestrictedHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    http.Header
		host      string
		wantHost  string
		wantClose bool
		wantHdr   http.Header
	}{
		{
			name:     "given a Host header, then it becomes the outbound host",
			header:   http.Header{},
			host:     "virtual.test",
			wantHost: "virtual.test",
			wantHdr:  http.Header{},
		},
		{
			name:      "given Connection close, then the outbound request closes",
			header:    http.Header{"Connection": {"close"}},
			wantClose: true,
			wantHdr:   http.Header{"Connection": {"close"}},
		},
		{
			name:      "given Proxy-Connection close, then the outbound request closes",
			header:    http.Header{"Proxy-Connection": {"Close"}},
			wantClose: true,
			wantHdr:   http.Header{"Proxy-Connection": {"Close"}},
		},
		{
			name:    "given Expect 100-continue, then it is kept",
			header:  http.Header{"Expect": {"100-continue"}},
			wantHdr: http.Header{"Expect": {"100-continue"}},
		},
		{
			name:    "given another Expect value, then it is dropped",
			header:  http.Header{"Expect": {"something"}},
			wantHdr: http.Header{},
		},
		{
			name:    "given Content-Length, then it is recomputed",
			header:  http.Header{"Content-Length": {"12"}},
			wantHdr: http.Header{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := httptest.NewRequest(http.MethodPost, "http://api.test/x", nil)
			in.Host = tt.host
			in.Header = tt.header

			out, err := http.NewRequest(http.MethodPost, "http://api.test/x", nil)
			assert.NoError(t, err)
			out.Header = tt.header.Clone()
			out.TransferEncoding = []string{"chunked"}

			translateRestrictedHeaders(out, in)

			if tt.wantHost != "" {
				assert.Equal(t, tt.wantHost, out.Host)
			} else {
				assert.Equal(t, "api.test", out.Host)
			}
			assert.Equal(t, tt.wantClose, out.Close)
			assert.Nil(t, out.TransferEncoding)
			assert.Equal(t, tt.wantHdr, out.Header)
		})
	}
}

func TestAddressedToSelf(t *testing.T) {
	t.Parallel()

	local := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4567}

	tests := []struct {
		name  string
		host  string
		local net.Addr
		want  bool
	}{
		{name: "given loopback on the listener port, then true", host: "127.0.0.1:4567", local: local, want: true},
		{name: "given localhost on the listener port, then true", host: "localhost:4567", local: local, want: true},
		{name: "given another port, then false", host: "127.0.0.1:80", local: local},
		{name: "given another host, then false", host: "api.test:4567", local: local},
		{name: "given no local address, then false", host: "127.0.0.1:4567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			if tt.local != nil {
				r = r.WithContext(context.WithValue(r.Context(), http.LocalAddrContextKey, tt.local))
			}

			assert.Equal(t, tt.want, addressedToSelf(r))
		})
	}
}

func TestHeaderHasToken(t *testing.T) {
	t.Parallel()

	h := http.Header{"Connection": {"Upgrade, Close"}}

	assert.True(t, headerHasToken(h, "Connection", "close"))
	assert.True(t, headerHasToken(h, "Connection", "upgrade"))
	assert.False(t, headerHasToken(h, "Connection", "keep-alive"))
	assert.False(t, headerHasToken(h, "Proxy-Connection", "close"))
}

package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// errRetryableStatus marks an attempt whose response status asked for a
// retry. It never reaches the caller.
var errRetryableStatus = errors.New("nock: retryable response status")

// retryableStatus are the statuses a destination uses to ask to be tried
// again later.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// transientErrors are connection failures worth another forwarding attempt.
var transientErrors = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ETIMEDOUT,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.EPIPE,
	os.ErrDeadlineExceeded,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// RetryClassifier decides whether a forwarded request is sent again.
//
//	cfg := httpclient.DefaultRetryConfig()
//	cfg.Classifier = func(resp *http.Response, err error) bool {
//	    if resp != nil && resp.StatusCode == http.StatusInternalServerError {
//	        return true
//	    }
//	    return httpclient.DefaultClassifier(resp, err)
//	}
type RetryClassifier func(resp *http.Response, err error) bool

// DefaultClassifier retries connection failures and 429, 502, 503 and 504
// answers. Cancellation, the caller's deadline, unknown hosts and TLS
// verification failures are final.
func DefaultClassifier(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return !isPermanent(err)
	}
	return resp != nil && retryableStatus[resp.StatusCode]
}

// StatusCodeClassifier retries the given statuses and transient connection
// failures.
//
//	cfg.Classifier = httpclient.StatusCodeClassifier(500, 502, 503, 504)
func StatusCodeClassifier(codes ...int) RetryClassifier {
	retry := make(map[int]bool, len(codes))
	for _, code := range codes {
		retry[code] = true
	}

	return func(resp *http.Response, err error) bool {
		if err != nil {
			return isTransient(err) && !isPermanent(err)
		}
		return resp != nil && retry[resp.StatusCode]
	}
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	for _, target := range transientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isPermanent(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}

	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EHOSTDOWN) {
		return true
	}

	// TLS failures wrapped by other libraries lose their type.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:")
}

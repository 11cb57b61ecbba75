package httpserver

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// defaultDialTimeout bounds the dial of a CONNECT target when no
// ForwardTimeout is configured.
const defaultDialTimeout = 30 * time.Second

// tunnel answers a CONNECT request with a raw TCP tunnel to its target.
// Encrypted traffic cannot be matched, so it always reaches the real
// destination.
func (l *Listener) tunnel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timeout := l.config.ForwardTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}

	target, err := dialer.DialContext(ctx, "tcp", r.Host)
	if err != nil {
		noteMatch(ctx, OutcomeFailed, nil)
		l.fail(w, r, r.Host, err)
		return
	}

	client, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		_ = target.Close()
		noteMatch(ctx, OutcomeFailed, nil)
		l.fail(w, r, r.Host, err)
		return
	}

	l.trackTunnel(client, true)
	l.trackTunnel(target, true)
	defer l.trackTunnel(client, false)
	defer l.trackTunnel(target, false)

	noteMatch(ctx, OutcomeTunneled, nil)
	l.metrics.recordOutcome(ctx, OutcomeTunneled)

	if _, err := io.WriteString(client, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		l.logger.Warn().Err(err).Str("target", r.Host).Msg("nock: failed to establish tunnel")
		_ = client.Close()
		_ = target.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(target, client)
		_ = target.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(client, target)
		_ = client.Close()
	}()
	wg.Wait()
}

// trackTunnel adds or removes a tunnel connection closed by Stop.
func (l *Listener) trackTunnel(conn net.Conn, add bool) {
	l.tunnelsMu.Lock()
	defer l.tunnelsMu.Unlock()

	if add {
		l.tunnels[conn] = struct{}{}
		return
	}
	delete(l.tunnels, conn)
}

// closeTunnels closes every open tunnel. Shutdown does not see hijacked
// connections.
func (l *Listener) closeTunnels() {
	l.tunnelsMu.Lock()
	defer l.tunnelsMu.Unlock()

	for conn := range l.tunnels {
		_ = conn.Close()
	}
}

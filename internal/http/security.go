package http

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

const (
	maxURLLength     = 2048
	maxForwardedHops = 5
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// SecurityStats is a point-in-time copy of the security counters.
type SecurityStats struct {
	RateLimitHits      int64 `json:"rate_limit_hits"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
}

func (m *securityMetrics) snapshot() SecurityStats {
	return SecurityStats{
		RateLimitHits:      atomic.LoadInt64(&m.rateLimitHits),
		SuspiciousRequests: atomic.LoadInt64(&m.suspiciousRequests),
	}
}

// Only loopback and private peers may set forwarding headers.
var trustedProxies = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

func isTrustedProxy(ip net.IP) bool {
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP is the key for per-client rate limiting. Forwarding
// headers count only when the direct peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !isTrustedProxy(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if client := strings.TrimSpace(first); net.ParseIP(client) != nil {
			return client
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// suspicionReason returns why a request does not look like a call from the
// dashboard front end, or "" when it does. The surface is a handful of JSON
// routes, so anything outside them is probing.
func suspicionReason(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		return "unexpected method"
	}

	path := r.URL.Path
	if path != "/healthz" && path != "/readyz" && !strings.HasPrefix(path, "/api/") {
		return "unknown route"
	}
	if strings.Contains(path, "..") || strings.ContainsFunc(path, func(c rune) bool { return c < 0x20 || c == 0x7f }) {
		return "malformed path"
	}
	if len(r.URL.String()) > maxURLLength {
		return "url too long"
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHops {
		return "forwarding chain too long"
	}
	return ""
}

// detectSuspiciousRequest counts and returns the suspicion reason.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) string {
	reason := suspicionReason(r)
	if reason != "" && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return reason
}

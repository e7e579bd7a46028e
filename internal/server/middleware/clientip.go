package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller's IP, or "unknown".
//
// Forwarding headers are honored only when the peer address is inside trusted. X-Forwarded-For
// is then read right to left and the first hop that is not a trusted proxy wins; X-Real-IP is
// used when X-Forwarded-For is absent. From any other peer the headers are ignored, since the
// client chooses their contents.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}
	if v := r.Header.Values("X-Forwarded-For"); len(v) > 0 {
		if ip, ok := forwardedClient(strings.Join(v, ","), trusted); ok {
			return ip.String()
		}
		return peer.String()
	}
	if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return ip.Unmap().String()
	}
	return peer.String()
}

// forwardedClient walks the hop list from the proxy side. Empty elements are skipped; an
// unparsable hop stops the walk with no result. When every hop is trusted the leftmost wins.
func forwardedClient(xff string, trusted []netip.Prefix) (netip.Addr, bool) {
	hops := strings.Split(xff, ",")
	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		h := strings.TrimSpace(hops[i])
		if h == "" {
			continue
		}
		ip, err := netip.ParseAddr(h)
		if err != nil {
			return netip.Addr{}, false
		}
		ip = ip.Unmap()
		if !isTrusted(ip, trusted) {
			return ip, true
		}
		last = ip
	}
	return last, last.IsValid()
}

func peerAddr(remote string) (netip.Addr, bool) {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIPCapture stores ClientIP(r, trusted) in the request context for handlers, rate limits and audit.
func ClientIPCapture(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIP(r, trusted))))
		})
	}
}

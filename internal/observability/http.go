package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientMeta is what a handshake request tells us about the peer.
type ClientMeta struct {
	DeviceID  string
	IP        string
	RequestID string
}

// MetaFromRequest reads the peer's device id, request id and address.
// Proxies are trusted for the address: X-Forwarded-For wins, then X-Real-Ip.
func MetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
		RequestID: r.Header.Get("X-Request-Id"),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

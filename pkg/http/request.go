package http

import (
	"net"
	"net/http"
	"strings"
)

// AnonymousClientKey is the rate-limit key used when no client address can be
// determined from the request.
const AnonymousClientKey = "anonymous"

// ClientKey extracts the caller identity used to key rate-limit counters.
//
// Order: first entry of X-Forwarded-For, then X-Real-IP, then the RemoteAddr
// host. Falls back to a sentinel when none of those yield a usable address.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if isValidIP(first) {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if isValidIP(xri) {
			return xri
		}
	}

	if host := remoteHost(r); host != "" {
		return host
	}

	return AnonymousClientKey
}

// remoteHost extracts the IP address from RemoteAddr (removing port if present)
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	// RemoteAddr may include port: "ip:port"
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

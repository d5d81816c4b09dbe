// Package httputil holds small request helpers shared by HTTP middleware.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address a request came from, for access logs.
//
// With trustProxy set, the leftmost valid address in X-Forwarded-For wins,
// then X-Real-IP. Header values that do not parse as an IP are ignored so a
// client cannot inject arbitrary text into logs. Only enable trustProxy
// behind a reverse proxy that overwrites these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return remoteHost(r.RemoteAddr)
}

func forwardedFor(header string) string {
	for _, part := range strings.Split(header, ",") {
		if ip := parseIP(part); ip != "" {
			return ip
		}
	}
	return ""
}

// parseIP accepts a bare address or host:port and returns its canonical form.
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip := net.ParseIP(strings.Trim(s, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

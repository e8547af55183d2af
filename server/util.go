package server

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client address of r. The first X-Forwarded-For entry is
// used only when the peer address starts with one of trustedProxies; with no
// trusted proxies the header is ignored.
func GetIP(r *http.Request, trustedProxies []string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if len(trustedProxies) == 0 || !IsWhitelisted(host, trustedProxies) {
		return host
	}
	if forwarded := r.Header.Get("X-FORWARDED-FOR"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return host
}

// IsWhitelisted reports whether ip starts with one of the whitelisted
// prefixes. An empty whitelist allows everyone.
func IsWhitelisted(ip string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	for i := range whitelist {
		if strings.HasPrefix(ip, whitelist[i]) {
			return true
		}
	}
	return false
}

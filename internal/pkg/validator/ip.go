// Package validator holds small input checks shared by the HTTP handlers.
package validator

import (
	"net/netip"
	"regexp"
	"strings"
)

// NormalizeIP strips an IPv6 zone, brackets and a trailing port, and maps
// IPv4-in-IPv6 back to IPv4. It returns "" for anything that is not an IP.
func NormalizeIP(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i != -1 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

// IsValidIP reports whether ip is an IPv4 or IPv6 address.
func IsValidIP(ip string) bool {
	return NormalizeIP(ip) != ""
}

// GetIPOrDefault returns the normalized ip, or def when ip is not an address.
func GetIPOrDefault(ip, def string) string {
	if n := NormalizeIP(ip); n != "" {
		return n
	}
	return def
}

var hostnamePattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// NormalizeHost lowercases host, drops a port and a trailing dot, and
// returns "" unless the result is a DNS name or an IP literal.
func NormalizeHost(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if h == "" || len(h) > 253 {
		return ""
	}
	if ip := NormalizeIP(h); ip != "" {
		return ip
	}
	if i := strings.LastIndexByte(h, ':'); i != -1 && isPort(h[i+1:]) {
		h = h[:i]
	}
	h = strings.TrimSuffix(h, ".")
	if !hostnamePattern.MatchString(h) {
		return ""
	}
	return h
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

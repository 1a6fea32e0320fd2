package goGuard

import (
	"net"
	"strings"
)

// ClientIP returns the caller address for rate limiting and auditing.
//
// Without trusted proxies only remoteAddr is used. Otherwise X-Forwarded-For is walked
// from the right and the first entry outside the trusted set wins; if every entry is
// trusted, remoteAddr is used.
func ClientIP(remoteAddr, xForwardedFor string, trusted []*net.IPNet) string {
	remoteIP := stripPort(remoteAddr)

	if len(trusted) == 0 || xForwardedFor == "" {
		return remoteIP
	}
	if ip := net.ParseIP(remoteIP); ip == nil || !isIPTrusted(ip, trusted) {
		return remoteIP
	}

	parts := strings.Split(xForwardedFor, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(parts[i])
		ip := net.ParseIP(candidate)
		if ip == nil {
			continue
		}
		if !isIPTrusted(ip, trusted) {
			return candidate
		}
	}

	return remoteIP
}

// ParseTrustedProxies turns IPs and CIDRs into networks. Invalid entries are skipped;
// [Config.Validate] rejects them earlier.
func ParseTrustedProxies(entries []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, c := range entries {
		c = strings.TrimSpace(c)
		if _, ipNet, err := net.ParseCIDR(c); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(c)
		if ip == nil {
			continue
		}
		mask := net.CIDRMask(128, 128)
		if v4 := ip.To4(); v4 != nil {
			ip = v4
			mask = net.CIDRMask(32, 32)
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: mask})
	}
	return nets
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}

func isIPTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

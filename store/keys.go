package store

import "strings"

// NoIPKey replaces an empty client IP so unrelated clients without an address never
// share a window with a real one.
const NoIPKey = "_noip_"

// RateLimitKey returns the sliding-window key for a policy path and client IP.
func RateLimitKey(path, ip string) string {
	return "ratelimit:" + path + ":" + normalizeIP(ip)
}

// BlockKey returns the block-entry key paired with [RateLimitKey].
func BlockKey(path, ip string) string {
	return RateLimitKey(path, ip) + ":blocked"
}

// ActivityKey returns the last-activity key for a session id.
func ActivityKey(jti string) string {
	return "session:" + jti + ":lastActivity"
}

// BlacklistKey returns the revocation key for a session id.
func BlacklistKey(jti string) string {
	return "blacklist:" + jti
}

// AlertKey returns the alert de-duplication key for an event type and IP.
func AlertKey(eventType, ip string) string {
	return "alert:" + eventType + ":" + normalizeIP(ip)
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return NoIPKey
	}
	return ip
}

package goGuard

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
)

// Config is the complete engine configuration. It is loaded once at startup and treated
// as immutable afterwards; [Builder.Build] works on a private copy.
type Config struct {
	RateLimit   RateLimitConfig
	Session     SessionConfig
	Token       TokenConfig
	Permissions PermissionConfig
	Routes      []Route
	CORS        CORSConfig
	Network     NetworkConfig
	Audit       AuditConfig
	Alerts      AlertConfig
	Metrics     MetricsConfig
	Store       StoreConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy is one path's rate-limit rule.
type RatePolicy = rate.Policy

// DefaultPolicyPath is the mandatory fallback entry of RateLimitConfig.Policies.
const DefaultPolicyPath = rate.DefaultPolicyPath

// RateLimitConfig holds the per-path sliding-window policies.
type RateLimitConfig struct {
	Enabled bool
	// Policies maps a path or path prefix to its policy. The "default" entry is required.
	Policies map[string]RatePolicy
}

/*
====================================
SESSION / TOKEN CONFIG
====================================
*/

// SessionConfig bounds session idleness and blacklist lifetime.
type SessionConfig struct {
	IdleTimeout time.Duration
	// MaxTokenLifetime bounds blacklist entries. It must cover the longest token lifetime.
	MaxTokenLifetime time.Duration
}

// TokenConfig selects where tokens are read from and how they are verified when no
// verifier is supplied through [Builder.WithVerifier].
type TokenConfig struct {
	HeaderName string
	Scheme     string
	// CookieName, when set, is consulted after the header.
	CookieName string

	SigningMethod string // "ed25519" (default) or "hs256"
	AccessTTL     time.Duration
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// JWKSURL switches verification to a remote JWK set.
	JWKSURL string
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig is the role table in "action:resource" form.
type PermissionConfig struct {
	// Roles maps a role to "action:resource" rules. Empty means DefaultRoles.
	Roles map[string][]string
}

/*
====================================
HTTP POLICY CONFIG
====================================
*/

// CORSConfig controls CORS and security response headers.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration

	SecurityHeaders bool
	HSTSMaxAge      time.Duration
}

// NetworkConfig controls client IP extraction.
type NetworkConfig struct {
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For entries are honored.
	TrustedProxies []string
}

/*
====================================
AUDIT / ALERT CONFIG
====================================
*/

// AuditConfig controls security event buffering and suspicious-event heuristics.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration

	SuspiciousIPs        []string
	SuspiciousUserAgents []string
}

// AlertConfig throttles and de-duplicates alerts.
type AlertConfig struct {
	BufferSize  int
	PerSecond   float64
	Burst       int
	Timeout     time.Duration
	DedupWindow time.Duration
}

/*
====================================
METRICS / STORE CONFIG
====================================
*/

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig bounds store round trips.
type StoreConfig struct {
	// Timeout bounds each store call. Zero leaves calls unbounded.
	Timeout time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: rate limiting on with a 100 req/min
// default policy, 30m idle timeout, 24h blacklist, default roles, audit on.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Enabled: true,
			Policies: map[string]RatePolicy{
				DefaultPolicyPath: {Limit: 100, Window: time.Minute},
			},
		},
		Session: SessionConfig{
			IdleTimeout:      session.DefaultIdleTimeout,
			MaxTokenLifetime: session.DefaultMaxTokenLifetime,
		},
		Token: TokenConfig{
			HeaderName:    "Authorization",
			Scheme:        "Bearer",
			SigningMethod: "ed25519",
			AccessTTL:     15 * time.Minute,
			Leeway:        30 * time.Second,
		},
		CORS: CORSConfig{
			Enabled:         false,
			AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:  []string{"Authorization", "Content-Type"},
			MaxAge:          10 * time.Minute,
			SecurityHeaders: true,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Alerts: AlertConfig{
			BufferSize:  256,
			PerSecond:   5,
			Burst:       10,
			Timeout:     5 * time.Second,
			DedupWindow: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Store: StoreConfig{
			Timeout: 500 * time.Millisecond,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.Policies != nil {
		out.RateLimit.Policies = make(map[string]RatePolicy, len(cfg.RateLimit.Policies))
		for k, v := range cfg.RateLimit.Policies {
			out.RateLimit.Policies[k] = v
		}
	}
	if cfg.Permissions.Roles != nil {
		out.Permissions.Roles = make(map[string][]string, len(cfg.Permissions.Roles))
		for k, v := range cfg.Permissions.Roles {
			out.Permissions.Roles[k] = cloneStrings(v)
		}
	}
	out.Routes = append([]Route(nil), cfg.Routes...)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.CORS.AllowedOrigins = cloneStrings(cfg.CORS.AllowedOrigins)
	out.CORS.AllowedMethods = cloneStrings(cfg.CORS.AllowedMethods)
	out.CORS.AllowedHeaders = cloneStrings(cfg.CORS.AllowedHeaders)
	out.CORS.ExposedHeaders = cloneStrings(cfg.CORS.ExposedHeaders)
	out.Network.TrustedProxies = cloneStrings(cfg.Network.TrustedProxies)
	out.Audit.SuspiciousIPs = cloneStrings(cfg.Audit.SuspiciousIPs)
	out.Audit.SuspiciousUserAgents = cloneStrings(cfg.Audit.SuspiciousUserAgents)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

/*
====================================
VALIDATION
====================================
*/

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration. Every error wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.Enabled {
		if _, err := rate.NewTable(c.RateLimit.Policies); err != nil {
			return invalid("RateLimit: %v", err)
		}
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return invalid("Session IdleTimeout must be > 0")
	}
	if c.Session.MaxTokenLifetime < c.Session.IdleTimeout {
		return invalid("Session MaxTokenLifetime must be >= IdleTimeout")
	}

	// Token
	if strings.TrimSpace(c.Token.HeaderName) == "" && strings.TrimSpace(c.Token.CookieName) == "" {
		return invalid("Token requires HeaderName or CookieName")
	}
	switch c.Token.SigningMethod {
	case "", "ed25519", "hs256":
	default:
		return invalid("Token SigningMethod %q is unsupported", c.Token.SigningMethod)
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return invalid("Token Leeway must be within [0, 2m]")
	}
	if c.Token.AccessTTL > c.Session.MaxTokenLifetime {
		return invalid("Token AccessTTL must not exceed Session MaxTokenLifetime")
	}

	// Permissions
	for role, rules := range c.Permissions.Roles {
		if strings.TrimSpace(role) == "" {
			return invalid("Permissions contain an empty role")
		}
		for _, r := range rules {
			if _, err := permission.ParseRule(r); err != nil {
				return invalid("Permissions role %q: %v", role, err)
			}
		}
	}

	// Routes
	seen := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return invalid("Route prefix %q must start with /", r.Prefix)
		}
		if _, dup := seen[r.Prefix]; dup {
			return invalid("Route prefix %q is duplicated", r.Prefix)
		}
		seen[r.Prefix] = struct{}{}
		if err := r.validate(); err != nil {
			return invalid("Route %q: %v", r.Prefix, err)
		}
	}

	// CORS
	if c.CORS.Enabled {
		for _, o := range c.CORS.AllowedOrigins {
			if o == "*" && c.CORS.AllowCredentials {
				return invalid("CORS wildcard origin cannot be combined with AllowCredentials")
			}
		}
		if c.CORS.MaxAge < 0 {
			return invalid("CORS MaxAge must be >= 0")
		}
	}
	if c.CORS.HSTSMaxAge < 0 {
		return invalid("CORS HSTSMaxAge must be >= 0")
	}

	// Network
	for _, p := range c.Network.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return invalid("Network trusted proxy %q is neither an IP nor a CIDR", p)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return invalid("Audit SinkTimeout must be >= 0")
	}
	if c.Alerts.PerSecond < 0 || c.Alerts.Burst < 0 || c.Alerts.DedupWindow < 0 {
		return invalid("Alerts values must be >= 0")
	}

	if c.Store.Timeout < 0 {
		return invalid("Store Timeout must be >= 0")
	}

	return nil
}

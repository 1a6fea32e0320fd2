package goGuard

import (
	"sort"
	"time"

	"github.com/MrEthical07/goGuard/permission"
)

// SecurityReport summarizes the effective security posture of an engine. It contains no
// key material.
type SecurityReport struct {
	SigningAlgorithm   string
	RemoteKeySet       bool
	AccessTTL          time.Duration
	IdleTimeout        time.Duration
	MaxTokenLifetime   time.Duration
	RateLimitingActive bool
	RatePolicies       []RatePolicyReport
	Roles              []string
	ProtectedRoutes    int
	PublicRoutes       int
	CORSEnabled        bool
	WildcardOrigin     bool
	SecurityHeaders    bool
	TrustedProxies     int
	AuditEnabled       bool
	AlertDedupWindow   time.Duration
	Warnings           []string
}

// RatePolicyReport is one configured rate-limit policy.
type RatePolicyReport struct {
	Path string
	RatePolicy
}

// SecurityReport summarizes the running engine's configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return buildSecurityReport(e.config, e.permissions.Roles())
}

// CheckConfig builds the report for cfg without connecting to any backend.
func CheckConfig(cfg Config) (SecurityReport, error) {
	if err := cfg.Validate(); err != nil {
		return SecurityReport{}, err
	}
	roles := make([]string, 0, len(cfg.Permissions.Roles))
	for r := range cfg.Permissions.Roles {
		roles = append(roles, r)
	}
	if len(roles) == 0 {
		for r := range permission.DefaultRoles() {
			roles = append(roles, r)
		}
	}
	sort.Strings(roles)
	return buildSecurityReport(cfg, roles), nil
}

func buildSecurityReport(cfg Config, roles []string) SecurityReport {
	r := SecurityReport{
		SigningAlgorithm:   cfg.Token.SigningMethod,
		RemoteKeySet:       cfg.Token.JWKSURL != "",
		AccessTTL:          cfg.Token.AccessTTL,
		IdleTimeout:        cfg.Session.IdleTimeout,
		MaxTokenLifetime:   cfg.Session.MaxTokenLifetime,
		RateLimitingActive: cfg.RateLimit.Enabled,
		Roles:              roles,
		CORSEnabled:        cfg.CORS.Enabled,
		SecurityHeaders:    cfg.CORS.SecurityHeaders,
		TrustedProxies:     len(cfg.Network.TrustedProxies),
		AuditEnabled:       cfg.Audit.Enabled,
		AlertDedupWindow:   cfg.Alerts.DedupWindow,
	}
	if r.RemoteKeySet {
		r.SigningAlgorithm = "jwks"
	}

	if cfg.RateLimit.Enabled {
		for path, p := range cfg.RateLimit.Policies {
			r.RatePolicies = append(r.RatePolicies, RatePolicyReport{Path: path, RatePolicy: p})
		}
		sort.Slice(r.RatePolicies, func(i, j int) bool {
			return r.RatePolicies[i].Path < r.RatePolicies[j].Path
		})
	} else {
		r.Warnings = append(r.Warnings, "rate limiting is disabled")
	}

	for _, route := range cfg.Routes {
		if route.RequireAuth {
			r.ProtectedRoutes++
		} else {
			r.PublicRoutes++
		}
	}
	if len(cfg.Routes) > 0 && r.ProtectedRoutes == 0 {
		r.Warnings = append(r.Warnings, "no route requires authentication")
	}

	for _, o := range cfg.CORS.AllowedOrigins {
		if o == "*" {
			r.WildcardOrigin = true
		}
	}
	if cfg.CORS.Enabled && r.WildcardOrigin {
		r.Warnings = append(r.Warnings, "CORS allows any origin")
	}
	if !cfg.CORS.SecurityHeaders {
		r.Warnings = append(r.Warnings, "security headers are disabled")
	}
	if !cfg.Audit.Enabled {
		r.Warnings = append(r.Warnings, "security events are not recorded")
	}
	if cfg.Alerts.DedupWindow == 0 {
		r.Warnings = append(r.Warnings, "alert de-duplication is disabled")
	}
	return r
}

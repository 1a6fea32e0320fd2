package goGuard

import (
	"net/http"
	"strconv"
	"strings"
)

// corsPolicy computes CORS and security response headers. It never touches the store.
type corsPolicy struct {
	enabled          bool
	anyOrigin        bool
	origins          map[string]struct{}
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	allowCredentials bool
	maxAge           string

	securityHeaders bool
	hsts            string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		enabled:          cfg.Enabled,
		origins:          make(map[string]struct{}, len(cfg.AllowedOrigins)),
		allowMethods:     strings.Join(cfg.AllowedMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowedHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposedHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
		securityHeaders:  cfg.SecurityHeaders,
	}
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[strings.ToLower(o)] = struct{}{}
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	if cfg.HSTSMaxAge > 0 {
		p.hsts = "max-age=" + strconv.Itoa(int(cfg.HSTSMaxAge.Seconds())) + "; includeSubDomains"
	}
	return p
}

func (p *corsPolicy) originAllowed(origin string) bool {
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// apply writes headers for rc into h. It reports whether rc is a preflight and, if so,
// whether its origin is allowed.
func (p *corsPolicy) apply(h http.Header, rc RequestContext) (preflight, allowed bool) {
	if p.securityHeaders {
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if p.hsts != "" {
			h.Set("Strict-Transport-Security", p.hsts)
		}
	}

	if !p.enabled || rc.Origin == "" {
		return false, true
	}

	preflight = rc.isPreflight()
	allowed = p.originAllowed(rc.Origin)
	if !allowed {
		return preflight, false
	}

	if p.anyOrigin && !p.allowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", rc.Origin)
		h.Add("Vary", "Origin")
	}
	if p.allowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.exposeHeaders != "" {
		h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
	}

	if preflight {
		if p.allowMethods != "" {
			h.Set("Access-Control-Allow-Methods", p.allowMethods)
		}
		if p.allowHeaders != "" {
			h.Set("Access-Control-Allow-Headers", p.allowHeaders)
		}
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
	}
	return preflight, true
}

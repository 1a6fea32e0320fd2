package goGuard

import (
	"net/http"
	"testing"
	"time"
)

func corsRequest(method, origin string, preflight bool) RequestContext {
	rc := RequestContext{Method: method, Path: "/api", Origin: origin, Header: make(http.Header)}
	if preflight {
		rc.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	return rc
}

func TestCORSDisabledOnlySecurityHeaders(t *testing.T) {
	p := newCORSPolicy(CORSConfig{SecurityHeaders: true, HSTSMaxAge: 365 * 24 * time.Hour})
	h := make(http.Header)

	preflight, allowed := p.apply(h, corsRequest(http.MethodOptions, "https://a.example", true))
	if preflight || !allowed {
		t.Fatalf("disabled CORS must not treat requests as preflight")
	}
	if h.Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected CORS header")
	}
	if h.Get("X-Frame-Options") != "DENY" || h.Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Fatalf("missing security headers: %v", h)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	p := newCORSPolicy(CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"https://app.example.com/"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization"},
		ExposedHeaders:   []string{"X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	})

	h := make(http.Header)
	preflight, allowed := p.apply(h, corsRequest(http.MethodOptions, "https://APP.example.com", true))
	if !preflight || !allowed {
		t.Fatalf("expected allowed preflight, got preflight=%v allowed=%v", preflight, allowed)
	}
	if h.Get("Access-Control-Allow-Origin") != "https://APP.example.com" || h.Get("Vary") != "Origin" {
		t.Fatalf("expected echoed origin, got %v", h)
	}
	if h.Get("Access-Control-Allow-Methods") != "GET, POST" || h.Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("missing preflight headers: %v", h)
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials header")
	}

	h = make(http.Header)
	preflight, _ = p.apply(h, corsRequest(http.MethodGet, "https://app.example.com", false))
	if preflight || h.Get("Access-Control-Allow-Methods") != "" {
		t.Fatalf("simple request must not get preflight headers")
	}
	if h.Get("Access-Control-Expose-Headers") != "X-RateLimit-Remaining" {
		t.Fatalf("expected expose headers on simple request")
	}
}

func TestCORSWildcardAndDisallowed(t *testing.T) {
	p := newCORSPolicy(CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}})
	h := make(http.Header)
	if _, allowed := p.apply(h, corsRequest(http.MethodGet, "https://any.example", false)); !allowed {
		t.Fatalf("wildcard must allow any origin")
	}
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard header, got %q", h.Get("Access-Control-Allow-Origin"))
	}

	p = newCORSPolicy(CORSConfig{Enabled: true, AllowedOrigins: []string{"https://app.example.com"}})
	h = make(http.Header)
	preflight, allowed := p.apply(h, corsRequest(http.MethodGet, "https://evil.example", false))
	if preflight || allowed || h.Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("disallowed origin must get no CORS headers")
	}
}

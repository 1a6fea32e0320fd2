package goGuard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
rate_limit:
  enabled: true
  policies:
    default: {limit: 200, window: 1m}
    /api/login: {limit: 5, window: 1m, block_duration: 15m}
session:
  idle_timeout: 20m
token:
  signing_method: hs256
  private_key_file: secret.key
  public_key_file: secret.key
  access_ttl: 10m
  issuer: goguard
roles:
  reader: ["read:*"]
routes:
  - prefix: /api/login
    login: true
  - prefix: /api/posts
    require_auth: true
    action: read
    resource: posts
cors:
  enabled: true
  allowed_origins: ["https://app.example.com"]
trusted_proxies: ["10.0.0.0/8"]
audit:
  suspicious_user_agents: ["(?i)sqlmap"]
alerts:
  dedup_window: 2m
`

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secret.key"), []byte("0123456789abcdef0123456789abcdef"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	path := filepath.Join(dir, "goguard.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := cfg.RateLimit.Policies["/api/login"]; got.Limit != 5 || got.BlockDuration != 15*time.Minute {
		t.Fatalf("unexpected login policy: %+v", got)
	}
	if cfg.Session.IdleTimeout != 20*time.Minute {
		t.Fatalf("expected idle 20m, got %v", cfg.Session.IdleTimeout)
	}
	if cfg.Session.MaxTokenLifetime != 24*time.Hour {
		t.Fatalf("unset keys must keep defaults, got %v", cfg.Session.MaxTokenLifetime)
	}
	if string(cfg.Token.PrivateKey) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("key file not resolved relative to config")
	}
	if cfg.Token.HeaderName != "Authorization" {
		t.Fatalf("expected default header, got %q", cfg.Token.HeaderName)
	}
	if len(cfg.Routes) != 2 || !cfg.Routes[0].Login || cfg.Routes[1].Action != "read" {
		t.Fatalf("unexpected routes: %+v", cfg.Routes)
	}
	if cfg.Alerts.DedupWindow != 2*time.Minute || cfg.Alerts.PerSecond != 5 {
		t.Fatalf("unexpected alerts: %+v", cfg.Alerts)
	}
	if !cfg.Audit.Enabled || cfg.Audit.BufferSize != 1024 {
		t.Fatalf("audit defaults lost: %+v", cfg.Audit)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "sesion:\n  idle_timeout: 1m\n"},
		{"bad duration", "session:\n  idle_timeout: soon\n"},
		{"invalid value", "session:\n  idle_timeout: 48h\n"},
		{"missing key file", "token:\n  private_key_file: nope.pem\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc), t.TempDir())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
)

const checkYAML = `
rate_limit:
  policies:
    default: {limit: 100, window: 1m}
    /api/login: {limit: 5, window: 1m, block_duration: 15m}
routes:
  - prefix: /api/login
    login: true
  - prefix: /api
    require_auth: true
cors:
  enabled: true
  allowed_origins: ["*"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goguard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCheckPrintsReport(t *testing.T) {
	path := writeConfig(t, checkYAML)

	out, err := runCLI(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{
		"(valid)",
		"- /api/login: 5 per 1m0s, block 15m0s",
		"- default: 100 per 1m0s",
		"1 protected, 1 public",
		"CORS allows any origin",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCheckStrictFailsOnWarnings(t *testing.T) {
	path := writeConfig(t, checkYAML)

	if _, err := runCLI(t, "config", "check", "--strict", path); err == nil {
		t.Fatalf("expected strict mode to fail on the wildcard origin warning")
	}
}

func TestConfigCheckRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "rate_limit:\n  policies:\n    default: {limit: 0, window: 1m}\n")

	_, err := runCLI(t, "config", "check", path)
	if !errors.Is(err, goGuard.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfigCheckRequiresFile(t *testing.T) {
	if _, err := runCLI(t, "config", "check"); err == nil {
		t.Fatalf("expected an argument error")
	}
}

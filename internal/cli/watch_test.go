package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goguard.yaml")
	if err := os.WriteFile(path, []byte(checkYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 50*time.Millisecond, func() { changes <- struct{}{} })
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(checkYAML), 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
	}

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected a change notification")
	}
	select {
	case <-changes:
		t.Fatalf("burst of writes should collapse into one notification")
	case <-time.After(300 * time.Millisecond):
	}

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	select {
	case <-changes:
		t.Fatalf("write to another file should not notify")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watchFile returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watchFile did not stop after cancel")
	}
}

func TestWatchFileMissingDirectory(t *testing.T) {
	err := watchFile(context.Background(), filepath.Join(t.TempDir(), "nope", "goguard.yaml"), time.Millisecond, func() {})
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestFileStoreLoad(t *testing.T) {
	path := writeTempConfig(t, `
retry_attempts: 3
security_disabled: false
backends:
  - name: gpu-1
    url: http://10.0.0.1:11434
    models: [llama3, mistral]
    timeout_seconds: 60
  - name: gpu-2
    url: http://10.0.0.2:11434
    models: [llama3]
users:
  - username: alice
    key: secret123
`)

	store := NewFileStore(path)
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if snap.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", snap.RetryAttempts)
	}
	if len(snap.Backends) != 2 {
		t.Fatalf("len(Backends) = %d, want 2", len(snap.Backends))
	}
	if !snap.Backends[0].ServesModel("llama3") {
		t.Error("gpu-1 should serve llama3")
	}
	if snap.Backends[0].Timeout() != 60 {
		t.Errorf("gpu-1 timeout = %d, want 60", snap.Backends[0].Timeout())
	}
	if snap.Backends[1].Timeout() != 300 {
		t.Errorf("gpu-2 timeout default = %d, want 300", snap.Backends[1].Timeout())
	}
	key, ok := snap.Users.Lookup("alice")
	if !ok || key != "secret123" {
		t.Errorf("Users.Lookup(alice) = %q, %v, want secret123, true", key, ok)
	}
}

func TestFileStoreLoadDefaultsRetryAttempts(t *testing.T) {
	path := writeTempConfig(t, "retry_attempts: 0\nbackends: []\nusers: []\n")

	snap, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1 (defaulted)", snap.RetryAttempts)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if _, err := store.Load(context.Background()); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	snap := &Snapshot{
		RetryAttempts:    2,
		SecurityDisabled: true,
		Backends: []*Backend{
			{Name: "gpu-1", URL: "http://x:1", Models: map[string]struct{}{"llama3": {}}, TimeoutSeconds: 45},
		},
		Users: AuthorizedUsers{"bob": "key1"},
	}

	if err := Save(path, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("reload after Save failed: %v", err)
	}
	if loaded.RetryAttempts != 2 || !loaded.SecurityDisabled {
		t.Errorf("round-tripped snapshot mismatch: %+v", loaded)
	}
	if len(loaded.Backends) != 1 || loaded.Backends[0].Name != "gpu-1" {
		t.Errorf("round-tripped backends mismatch: %+v", loaded.Backends)
	}
	if key, ok := loaded.Users.Lookup("bob"); !ok || key != "key1" {
		t.Errorf("round-tripped user mismatch: %q, %v", key, ok)
	}
}

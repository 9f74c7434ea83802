// internal/adapters/out/localstore/localstore_test.go
package localstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	cartdom "storefront/internal/domain/cart"
)

// exerciseStore checks the LocalStore contract shared by every backend.
func exerciseStore(t *testing.T, s cartdom.LocalStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, cartdom.LocalCartKey); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.Remove(ctx, cartdom.LocalCartKey); err != nil {
		t.Fatalf("Remove(missing): %v", err)
	}

	if err := s.Set(ctx, cartdom.LocalCartKey, `[{"id":"a"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "other", "x"); err != nil {
		t.Fatalf("Set(other): %v", err)
	}
	v, ok, err := s.Get(ctx, cartdom.LocalCartKey)
	if err != nil || !ok || v != `[{"id":"a"}]` {
		t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
	}

	if err := s.Set(ctx, cartdom.LocalCartKey, "[]"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Get(ctx, cartdom.LocalCartKey); v != "[]" {
		t.Fatalf("after overwrite Get = %q", v)
	}

	if err := s.Remove(ctx, cartdom.LocalCartKey); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, cartdom.LocalCartKey); ok {
		t.Fatalf("key still present after Remove")
	}
	if v, ok, _ := s.Get(ctx, "other"); !ok || v != "x" {
		t.Fatalf("Remove touched another key: %q ok=%v", v, ok)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), uuid.NewString())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir, "device-1")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s1.Set(ctx, cartdom.LocalCartKey, "[]"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := NewFileStore(dir, "device-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, err := s2.Get(ctx, cartdom.LocalCartKey); err != nil || !ok || v != "[]" {
		t.Fatalf("reopened Get = %q ok=%v err=%v", v, ok, err)
	}
	if s2.Path() != filepath.Join(dir, "device-1.json") {
		t.Fatalf("Path = %s", s2.Path())
	}

	other, _ := NewFileStore(dir, "device-2")
	if _, ok, _ := other.Get(ctx, cartdom.LocalCartKey); ok {
		t.Fatalf("devices share a file")
	}
}

func TestFileStore_RejectsBadDevice(t *testing.T) {
	dir := t.TempDir()
	for _, dev := range []string{"", " ", "..", "a/b", `a\b`} {
		if _, err := NewFileStore(dir, dev); err == nil {
			t.Fatalf("NewFileStore(%q) succeeded", dev)
		}
	}
}

func TestFileStore_UnreadableFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir, "d")
	if err := os.WriteFile(s.Path(), []byte("not an object"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := s.Get(context.Background(), cartdom.LocalCartKey); err == nil {
		t.Fatalf("Get on a broken file succeeded")
	}
}

func TestRedisStore(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(addr)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()
	if err := PingRedis(context.Background(), client); err != nil {
		t.Fatalf("PingRedis: %v", err)
	}

	ns := "test-" + uuid.NewString()
	s, err := NewRedisStore(client, ns)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { client.Del(context.Background(), "localstore:"+ns) })
	exerciseStore(t, s)
}

func TestNewRedisStore_Validation(t *testing.T) {
	if _, err := NewRedisStore(nil, "ns"); err == nil {
		t.Fatalf("nil client accepted")
	}
	client, err := NewRedisClient("localhost")
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()
	if client.Options().Addr != "localhost:6379" {
		t.Fatalf("Addr = %s, want localhost:6379", client.Options().Addr)
	}
	if _, err := NewRedisStore(client, " "); err == nil {
		t.Fatalf("empty namespace accepted")
	}
	if _, err := NewRedisClient(""); err == nil {
		t.Fatalf("empty addr accepted")
	}
}

package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "flavorai")

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("NewStore() did not create the directory")
	}
}

func TestGet_NoFile(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	_, ok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok {
		t.Error("Get() should report no token when the file is missing")
	}
}

func TestSet_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, _ := NewStore(dir)
	if err := first.Set(ctx, "persisted-token"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	// A second store over the same directory models a process restart.
	second, _ := NewStore(dir)
	token, ok, err := second.Get(ctx)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok || token != "persisted-token" {
		t.Errorf("Get() = %q, %v; want persisted-token, true", token, ok)
	}
}

func TestSet_FileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := t.TempDir()
	store, _ := NewStore(dir)

	if err := store.Set(context.Background(), "secret"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "token"))
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode: got %o, want 600", perm)
	}
}

func TestSet_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	ctx := context.Background()

	store.Set(ctx, "a")
	store.Set(ctx, "b")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "token" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents: got %v, want [token]", names)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	ctx := context.Background()

	store.Set(ctx, "t1")
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Error("Get() after Clear() should report no token")
	}
	if err := store.Clear(ctx); err != nil {
		t.Errorf("second Clear() should succeed, got %v", err)
	}
}

func TestGet_WhitespaceOnlyFile(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "token"), []byte(" \n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := store.Get(context.Background()); ok {
		t.Error("a blank token file should read as empty")
	}
}

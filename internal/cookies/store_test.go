package cookies

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fixedProber marks paths in the working set as valid.
type fixedProber struct {
	working map[string]bool
}

func (f *fixedProber) Probe(_ context.Context, path string) (bool, string) {
	if f.working[filepath.Base(path)] {
		return true, "logged in"
	}
	return false, "not logged in"
}

func writeBundle(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestSelectBest_PrefersWorkingNewest(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "old_1.txt", 48*time.Hour)
	writeBundle(t, dir, "new_2.txt", time.Hour)
	writeBundle(t, dir, "dead_3.txt", time.Minute)

	store := NewStore(dir, &fixedProber{working: map[string]bool{
		"old_1.txt": true,
		"new_2.txt": true,
	}})

	selection, err := store.SelectBest(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if selection.Bundle == nil {
		t.Fatal("Expected a bundle to be selected")
	}
	if filepath.Base(selection.Bundle.Path) != "new_2.txt" {
		t.Errorf("Expected newest working bundle 'new_2.txt', got '%s'", filepath.Base(selection.Bundle.Path))
	}
	if selection.Warned {
		t.Error("Expected no warning when a working bundle exists")
	}
}

func TestSelectBest_AllDeadReturnsNewestWithWarning(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "older_1.txt", 72*time.Hour)
	writeBundle(t, dir, "newer_2.txt", time.Hour)

	store := NewStore(dir, &fixedProber{working: map[string]bool{}})

	selection, err := store.SelectBest(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if selection.Bundle == nil {
		t.Fatal("Expected newest bundle despite failing probes")
	}
	if filepath.Base(selection.Bundle.Path) != "newer_2.txt" {
		t.Errorf("Expected 'newer_2.txt', got '%s'", filepath.Base(selection.Bundle.Path))
	}
	if !selection.Warned {
		t.Error("Expected warning when no bundle probed as working")
	}
}

func TestSelectBest_EmptyDirectory(t *testing.T) {
	store := NewStore(t.TempDir(), &fixedProber{})

	selection, err := store.SelectBest(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if selection.Bundle != nil {
		t.Errorf("Expected no selection, got %s", selection.Bundle.Path)
	}
}

func TestSelectBest_EnvBundleRanksFresh(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, &fixedProber{working: map[string]bool{
		EnvBundleName: true,
		"user_1.txt":  true,
	}})

	if err := store.MaterializeEnv("# cookies\n"); err != nil {
		t.Fatalf("materialize env bundle: %v", err)
	}
	// Backdate the env file on disk; Age must still treat it as fresh.
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, EnvBundleName), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeBundle(t, dir, "user_1.txt", time.Hour)

	selection, err := store.SelectBest(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if selection.Bundle == nil || filepath.Base(selection.Bundle.Path) != EnvBundleName {
		t.Fatalf("Expected environment bundle to win, got %+v", selection.Bundle)
	}
}

func TestSaveUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, &fixedProber{})

	path, err := store.SaveUpload("Alice Smith", []byte("cookie data"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "Alice_Smith_") || !strings.HasSuffix(name, BundleExtension) {
		t.Errorf("Unexpected upload name: %s", name)
	}

	if _, err := store.SaveUpload("bob", nil); err == nil {
		t.Error("Expected error for empty upload")
	}

	if err := store.Delete("../" + name); err == nil {
		t.Error("Expected traversal delete to be rejected")
	}
	if err := store.Delete(name); err != nil {
		t.Errorf("Expected no error deleting bundle, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected bundle to be removed, stat err=%v", err)
	}
}

func TestCookieHeaderFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".example.com\tTRUE\t/\tTRUE\t0\tSID\tabc123\n" +
		"bad line without tabs\n" +
		".example.com\tTRUE\t/\tTRUE\t0\tHSID\txyz\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	header, err := cookieHeaderFromFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := "SID=abc123; HSID=xyz"
	if header != expected {
		t.Errorf("Expected header '%s', got '%s'", expected, header)
	}
}

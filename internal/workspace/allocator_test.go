package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice", "alice"},
		{"", "guest"},
		{"   ", "guest"},
		{"../../etc", "etc"},
		{"John Smith", "John_Smith"},
		{"weird!@#name", "weirdname"},
		{"under_score-ok", "under_score-ok"},
		{"!!!", "guest"},
		{strings.Repeat("a", 100), strings.Repeat("a", MaxUserLabelLength)},
	}

	for _, test := range tests {
		result := SanitizeLabel(test.input)
		if result != test.expected {
			t.Errorf("SanitizeLabel(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestAllocate_PathUnderRoot(t *testing.T) {
	root := t.TempDir()
	allocator := NewAllocator(root)

	session, err := allocator.Allocate("alice")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.HasPrefix(session.Path, root) {
		t.Errorf("Expected path under root %s, got %s", root, session.Path)
	}
	if session.UserLabel != "alice" {
		t.Errorf("Expected user label 'alice', got '%s'", session.UserLabel)
	}
	if info, err := os.Stat(session.Path); err != nil || !info.IsDir() {
		t.Errorf("Expected workspace directory to exist, stat err=%v", err)
	}
	if !allocator.InUse(session.Path) {
		t.Error("Expected freshly allocated session to be registered as in use")
	}
}

func TestAllocate_UniquePaths(t *testing.T) {
	root := t.TempDir()
	allocator := NewAllocator(root)

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		session, err := allocator.Allocate("guest")
		if err != nil {
			t.Fatalf("Expected no error on trial %d, got %v", i, err)
		}
		if seen[session.Path] {
			t.Fatalf("Duplicate session path produced: %s", session.Path)
		}
		seen[session.Path] = true
	}
}

func TestReleaseAndDiscard(t *testing.T) {
	root := t.TempDir()
	allocator := NewAllocator(root)

	released, err := allocator.Allocate("bob")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	allocator.Release(released)
	if allocator.InUse(released.Path) {
		t.Error("Expected released session to be unregistered")
	}
	if _, err := os.Stat(released.Path); err != nil {
		t.Errorf("Expected released workspace to stay on disk, got %v", err)
	}

	discarded, err := allocator.Allocate("bob")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := allocator.Discard(discarded); err != nil {
		t.Fatalf("Expected no error discarding, got %v", err)
	}
	if _, err := os.Stat(discarded.Path); !os.IsNotExist(err) {
		t.Errorf("Expected discarded workspace to be removed, stat err=%v", err)
	}
	if allocator.ActiveCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", allocator.ActiveCount())
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()

	if NonEmpty(dir) {
		t.Error("Expected empty directory to report non-empty=false")
	}

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if NonEmpty(dir) {
		t.Error("Expected directory with only empty subdirectory to report false")
	}

	if err := os.WriteFile(filepath.Join(sub, "song.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if !NonEmpty(dir) {
		t.Error("Expected directory with nested file to report true")
	}
}

func TestListFilesAndResolve(t *testing.T) {
	root := t.TempDir()
	allocator := NewAllocator(root)

	session, err := allocator.Allocate("carol")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	path := filepath.Join(session.Path, "Song A.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	files, err := allocator.ListFiles()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	if files[0].Name != "Song A.mp3" || files[0].UserLabel != "carol" {
		t.Errorf("Unexpected listing entry: %+v", files[0])
	}

	resolved, err := allocator.ResolveFile("carol", session.ID, "Song A.mp3")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resolved != path {
		t.Errorf("Expected resolved path %s, got %s", path, resolved)
	}

	if _, err := allocator.ResolveFile("carol", "..", "Song A.mp3"); err == nil {
		t.Error("Expected traversal component to be rejected")
	}
	if _, err := allocator.ResolveFile("carol", session.ID, "../secret"); err == nil {
		t.Error("Expected filename with separator to be rejected")
	}
}

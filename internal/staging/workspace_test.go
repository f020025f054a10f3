package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		scope string
		want  string
	}{
		{"", "report_task3_workspace"},
		{"1f2e3d4c", "report_1f2e3d4c_task3_workspace"},
	}
	for _, tt := range tests {
		if got := Name("report", tt.scope, 3); got != tt.want {
			t.Fatalf("Name(%q) = %q, want %q", tt.scope, got, tt.want)
		}
	}
}

func TestPrepareKeepsOtherScopes(t *testing.T) {
	root := t.TempDir()
	first, err := Prepare(root, "aaaa1111", "report", 1)
	if err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(first, "report.tar")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Prepare(root, "bbbb2222", "report", 1)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if second == first {
		t.Fatalf("expected distinct workspaces, both %q", first)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("first workspace was disturbed: %v", err)
	}
}

func TestPrepareClearsStaleWorkspace(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, Name("report", "", 1))
	if err := os.MkdirAll(filepath.Join(stale, "old"), 0o755); err != nil {
		t.Fatal(err)
	}

	dir, err := Prepare(root, "", "report", 1)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if dir != stale {
		t.Fatalf("unexpected dir %q", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty workspace, got %v (%v)", entries, err)
	}
}

func TestPrepareRejectsBadInput(t *testing.T) {
	if _, err := Prepare("", "", "x", 1); err == nil {
		t.Fatal("expected error for empty root")
	}
	if _, err := Prepare(t.TempDir(), "", "../x", 1); err == nil {
		t.Fatal("expected error for path-like base name")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir, err := Prepare(t.TempDir(), "", "a", 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := Remove(dir); err != nil {
			t.Fatalf("Remove #%d returned error: %v", i+1, err)
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("workspace should be gone")
	}
}

package utils

import (
	"path/filepath"
	"testing"
)

func TestNormPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b/c.txt", "a/b/c.txt"},
		{filepath.Join("a", "b", "c.txt"), "a/b/c.txt"},
		{"/leading/slash", "leading/slash"},
		{"plain.txt", "plain.txt"},
	}

	for _, tt := range tests {
		if got := NormPath(tt.in); got != tt.want {
			t.Errorf("NormPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dir) {
		t.Fatalf("expected %q to exist", dir)
	}
	if FileExists(dir) {
		t.Fatalf("directory must not count as a file")
	}
}

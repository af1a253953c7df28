package pathguard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateVirtualAccepts(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"simple file", "a.txt", "a.txt"},
		{"nested file", "dir/sub/a.txt", "dir/sub/a.txt"},
		{"leading slash trimmed", "/a.txt", "a.txt"},
		{"trailing slash trimmed", "dir/", "dir"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ValidateVirtual(test.path)
			if err != nil {
				t.Fatalf("ValidateVirtual(%q) returned error: %v", test.path, err)
			}
			if got != test.want {
				t.Errorf("ValidateVirtual(%q) = %q, want %q", test.path, got, test.want)
			}
		})
	}
}

func TestValidateVirtualRejects(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent reference", "dir/../other"},
		{"bare parent reference", ".."},
		{"empty component", "dir//file"},
		{"dot prefix", ".hidden"},
		{"NUL byte", "dir/a\x00b"},
		{"overlong component", string(make([]byte, 256))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ValidateVirtual(test.path); err == nil {
				t.Errorf("ValidateVirtual(%q) succeeded, want error", test.path)
			}
		})
	}
}

func TestValidateAbsoluteWithinBase(t *testing.T) {
	base := t.TempDir()
	// The system temporary directory contains the blacklisted "/tmp/"
	// substring, which is only exempt under the home directory, so HOME is
	// pointed at base for this test.
	t.Setenv("HOME", base)
	target := filepath.Join(base, "a", "b.txt")
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		t.Fatalf("unable to create directory: %v", err)
	}

	resolved, err := ValidateAbsolute(target, base)
	if err != nil {
		t.Fatalf("ValidateAbsolute returned error: %v", err)
	}
	if filepath.Clean(resolved) != filepath.Clean(target) {
		t.Errorf("ValidateAbsolute returned %q, want %q", resolved, target)
	}
}

func TestValidateAbsoluteEscapeRejected(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(filepath.Dir(base), "outside.txt")

	if _, err := ValidateAbsolute(outside, base); err == nil {
		t.Errorf("ValidateAbsolute(%q, %q) succeeded, want error", outside, base)
	}
}

func TestValidateAbsoluteParentTraversalRejected(t *testing.T) {
	base := t.TempDir()
	traversal := filepath.Join(base, "..", "..", "etc", "passwd")

	if _, err := ValidateAbsolute(traversal, base); err == nil {
		t.Errorf("ValidateAbsolute(%q, %q) succeeded, want error", traversal, base)
	}
}

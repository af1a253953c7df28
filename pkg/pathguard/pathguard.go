// Package pathguard validates paths before they touch the filesystem or the
// Store. Every boundary surface (VFS operations, RPC handlers, SyncEngine
// planning) calls into this package first; an invalid path yields
// dmerrors.CodeInvalidPath without any filesystem access, per spec §4.2.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

const (
	// maxPathBytes is the length limit for a full path.
	maxPathBytes = 1024
	// maxComponentBytes is the length limit for a single path component.
	maxComponentBytes = 255
)

// blacklistedSubstrings are forbidden anywhere in an absolute path unless the
// resolved path lies under the user's home directory.
var blacklistedSubstrings = []string{
	"../", "/etc/", "/System/", "/usr/", "/bin/", "/sbin/", "/var/", "/tmp/",
	"/Library/", "\x00",
}

// ValidateAbsolute resolves path (expanding a leading "~" and any symlinks)
// and verifies that the result is prefix-equal to withinBase and free of
// blacklisted substrings, unless the resolved path falls under the caller's
// home directory. It returns the canonical resolved path on success.
func ValidateAbsolute(path, withinBase string) (string, error) {
	if len(path) > maxPathBytes {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "path exceeds maximum length").With("path", path)
	}
	if strings.ContainsRune(path, 0) {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "path contains NUL byte")
	}

	expanded, err := expandTilde(path)
	if err != nil {
		return "", dmerrors.Wrap(err, dmerrors.CodeInvalidPath, "unable to expand path").With("path", path)
	}

	resolved, err := resolveSymlinks(expanded)
	if err != nil {
		return "", dmerrors.Wrap(err, dmerrors.CodeInvalidPath, "unable to resolve path").With("path", path)
	}

	base, err := resolveSymlinks(withinBase)
	if err != nil {
		return "", dmerrors.Wrap(err, dmerrors.CodeInvalidPath, "unable to resolve base path").With("path", withinBase)
	}

	if !withinSlashAnchored(resolved, base) {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "path escapes base directory").With("path", path)
	}

	home, _ := os.UserHomeDir()
	underHome := home != "" && withinSlashAnchored(resolved, home)
	if !underHome {
		for _, substring := range blacklistedSubstrings {
			if strings.Contains(resolved, substring) {
				return "", dmerrors.New(dmerrors.CodeInvalidPath, "path contains forbidden substring").With("path", path)
			}
		}
	}

	return resolved, nil
}

// ValidateVirtual strips a single pair of leading/trailing slashes and
// rejects any virtual path containing "..", "//", a leading ".", a NUL byte,
// or a component/path exceeding the length limits.
func ValidateVirtual(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")

	if len(trimmed) > maxPathBytes {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path exceeds maximum length").With("path", path)
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path contains NUL byte")
	}
	if strings.HasPrefix(trimmed, ".") {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path may not begin with '.'").With("path", path)
	}
	if strings.Contains(trimmed, "//") {
		return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path contains empty component").With("path", path)
	}

	for _, component := range strings.Split(trimmed, "/") {
		if component == ".." {
			return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path contains '..'").With("path", path)
		}
		if len(component) > maxComponentBytes {
			return "", dmerrors.New(dmerrors.CodeInvalidPath, "virtual path component exceeds maximum length").With("path", path)
		}
	}

	return trimmed, nil
}

// withinSlashAnchored reports whether resolved is equal to, or a
// slash-anchored descendant of, base.
func withinSlashAnchored(resolved, base string) bool {
	base = strings.TrimSuffix(base, "/")
	if resolved == base {
		return true
	}
	return strings.HasPrefix(resolved, base+"/")
}

// expandTilde expands a leading "~" or "~/" to the user's home directory.
func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// resolveSymlinks resolves path to its canonical form, following symlinks for
// as much of the path as currently exists on disk; the portion that does not
// yet exist (e.g. a file about to be created) is appended unresolved.
func resolveSymlinks(path string) (string, error) {
	clean := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		return resolved, nil
	}

	// Walk up to the nearest existing ancestor, resolve that, then
	// reattach the remaining (not-yet-existing) suffix.
	var suffix []string
	current := clean
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return clean, nil
		}
		suffix = append(suffix, filepath.Base(current))
		current = parent
	}
}

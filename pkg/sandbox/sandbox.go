// Package sandbox confines file paths taken from untrusted patches to a root
// directory.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// SecurityError reports a path that would leave the sandbox root.
type SecurityError struct {
	Root   string
	Path   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("path %q rejected: %s (root %s)", e.Path, e.Reason, e.Root)
}

// ResolveLexical cleans declared and joins it to root without touching the
// file system. Absolute paths are accepted only when they already lie inside
// root.
func ResolveLexical(root, declared string) (string, error) {
	root = filepath.Clean(root)
	if strings.TrimSpace(declared) == "" {
		return "", &SecurityError{Root: root, Path: declared, Reason: "empty path"}
	}
	if strings.ContainsRune(declared, 0) {
		return "", &SecurityError{Root: root, Path: declared, Reason: "path contains a NUL byte"}
	}

	candidate := filepath.FromSlash(declared)
	if !filepath.IsAbs(candidate) {
		// Joining to "/" would clamp a leading ".." instead of exposing it.
		if cleaned := filepath.Clean(candidate); cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return "", &SecurityError{Root: root, Path: declared, Reason: "path escapes the root"}
		}
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &SecurityError{Root: root, Path: declared, Reason: "path escapes the root"}
	}
	if rel == "." {
		return "", &SecurityError{Root: root, Path: declared, Reason: "path names the root itself"}
	}
	return candidate, nil
}

// Resolve confines declared to root on the real file system. Symlinks are
// followed only while their targets stay inside root; a link that points
// outside is rejected rather than silently re-rooted.
func Resolve(root, declared string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox root %s: %w", root, err)
	}
	if evaluated, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = evaluated
	}

	lexical, err := ResolveLexical(absRoot, declared)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, lexical)
	if err != nil {
		return "", &SecurityError{Root: absRoot, Path: declared, Reason: "path escapes the root"}
	}

	joined, err := securejoin.SecureJoin(absRoot, rel)
	if err != nil {
		return "", &SecurityError{Root: absRoot, Path: declared, Reason: err.Error()}
	}
	if joined == lexical {
		return joined, nil
	}

	// A symlink was traversed. Check where the deepest existing ancestor
	// really lives before trusting the re-rooted path.
	actual, err := realAncestor(lexical, absRoot)
	if err != nil {
		return "", err
	}
	if !within(absRoot, actual) {
		return "", &SecurityError{Root: absRoot, Path: declared, Reason: "symlink points outside the root"}
	}
	return joined, nil
}

func realAncestor(path, root string) (string, error) {
	suffix := ""
	current := path
	for {
		evaluated, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(evaluated, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("evaluate %s: %w", current, err)
		}
		if info, lerr := os.Lstat(current); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			// Dangling link: judge it by where it points.
			target, rerr := os.Readlink(current)
			if rerr != nil {
				return "", fmt.Errorf("read link %s: %w", current, rerr)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(current), target)
			}
			return filepath.Join(filepath.Clean(target), suffix), nil
		}
		if current == root {
			return root, nil
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		current = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CheckRoot reports an error unless root is an existing directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	return nil
}

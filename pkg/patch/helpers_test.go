package patch

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func patchText(lines ...string) string {
	return strings.Join(lines, "\n")
}

func ctxBackground() context.Context {
	return context.Background()
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if pe.Kind != kind {
		t.Fatalf("unexpected error kind: got %s want %s (%v)", pe.Kind, kind, err)
	}
	return pe
}

// newMemoryApplier returns an applier over an in-memory file system seeded
// with files, along with the file system for inspection.
func newMemoryApplier(t *testing.T, files map[string]string, opts ApplierOptions) (*Applier, FileSystem) {
	t.Helper()
	fsys := NewMemoryFileSystem()
	for name, content := range files {
		if err := fsys.WriteFile(name, []byte(content)); err != nil {
			t.Fatalf("failed to seed %s: %v", name, err)
		}
	}
	return NewApplier(fsys, opts), fsys
}

func readString(t *testing.T, fsys FileSystem, name string) string {
	t.Helper()
	content, err := fsys.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(content)
}

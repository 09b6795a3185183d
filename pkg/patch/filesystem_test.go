package patch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestApplyFilesystemUpdatesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("one\n"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	result, err := ApplyFilesystemPatch(context.Background(), patchText(
		"*** Begin Patch",
		"*** Update File: foo.txt",
		"@@ one",
		"-one",
		"+two",
		"*** End Patch",
	), FilesystemOptions{WorkingDir: dir})
	if err != nil {
		t.Fatalf("ApplyFilesystemPatch returned error: %v", err)
	}
	if len(result.Modified) != 1 || result.Modified[0] != "foo.txt" {
		t.Fatalf("unexpected result: %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(dir, "foo.txt"))
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(content) != "two\n" {
		t.Fatalf("unexpected content: %q", content)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "foo.txt"))
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("permissions not preserved: %v", info.Mode().Perm())
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestApplyFilesystemAddsAndMovesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	result, err := ApplyFilesystemPatch(context.Background(), patchText(
		"*** Begin Patch",
		"*** Add File: new.txt",
		"+hello",
		"*** Update File: new.txt",
		"*** Move to: nested/moved.txt",
		"@@ hello",
		"-hello",
		"+world",
		"*** End Patch",
	), FilesystemOptions{WorkingDir: dir})
	if err != nil {
		t.Fatalf("ApplyFilesystemPatch returned error: %v", err)
	}
	if len(result.Added) != 1 || len(result.Modified) != 1 || result.Modified[0] != "nested/moved.txt" {
		t.Fatalf("unexpected result: %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(dir, "nested", "moved.txt"))
	if err != nil {
		t.Fatalf("failed to read moved file: %v", err)
	}
	if string(content) != "world" {
		t.Fatalf("unexpected moved content: %q", content)
	}
	if _, err := os.Stat(filepath.Join(dir, "new.txt")); !os.IsNotExist(err) {
		t.Fatalf("source should be removed, stat err = %v", err)
	}
}

func TestApplyFilesystemRejectsEscapes(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	dir := filepath.Join(parent, "root")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, path := range []string{"../outside.txt", filepath.Join(parent, "abs.txt")} {
		_, err := ApplyFilesystemPatch(context.Background(), patchText(
			"*** Begin Patch",
			"*** Add File: "+path,
			"+x",
			"*** End Patch",
		), FilesystemOptions{WorkingDir: dir})
		requireKind(t, err, KindSecurity)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("files escaped the root: %v", entries)
	}
}

func TestApplyFilesystemDryRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(target, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	result, err := ApplyFilesystemPatch(context.Background(), patchText(
		"*** Begin Patch",
		"*** Delete File: keep.txt",
		"*** End Patch",
	), FilesystemOptions{WorkingDir: dir, DryRun: true})
	if err != nil {
		t.Fatalf("ApplyFilesystemPatch returned error: %v", err)
	}
	if len(result.Deleted) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("dry run deleted the file: %v", err)
	}
}

func TestAferoFileSystemRemoveRejectsDirectories(t *testing.T) {
	t.Parallel()

	fsys := NewMemoryFileSystem()
	if err := fsys.WriteFile("dir/file.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fsys.Remove("dir"); err == nil {
		t.Fatalf("expected error removing a directory")
	}
	if _, err := fsys.ReadFile("dir"); err == nil {
		t.Fatalf("expected error reading a directory")
	}
}

package patch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/pkg/sandbox"
)

// FileSystem is the capability the Applier needs. Names are whatever the
// ResolveFunc produced.
type FileSystem interface {
	// ReadFile returns an error matching fs.ErrNotExist when name is missing.
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces name in a single step, creating parent directories.
	WriteFile(name string, data []byte) error
	Remove(name string) error
	Exists(name string) (bool, error)
}

type aferoFileSystem struct {
	fs afero.Fs
}

// NewAferoFileSystem adapts an afero.Fs.
func NewAferoFileSystem(fsys afero.Fs) FileSystem {
	return &aferoFileSystem{fs: fsys}
}

// NewOSFileSystem returns a FileSystem backed by the operating system.
func NewOSFileSystem() FileSystem {
	return NewAferoFileSystem(afero.NewOsFs())
}

// NewMemoryFileSystem returns an empty in-memory FileSystem.
func NewMemoryFileSystem() FileSystem {
	return NewAferoFileSystem(afero.NewMemMapFs())
}

func (a *aferoFileSystem) ReadFile(name string) ([]byte, error) {
	info, err := a.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return afero.ReadFile(a.fs, name)
}

// WriteFile writes to a temporary sibling and renames it over name, keeping
// the permission bits of the file it replaces.
func (a *aferoFileSystem) WriteFile(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	perm := fs.FileMode(0o644)
	if info, err := a.fs.Stat(name); err == nil {
		if info.IsDir() {
			return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
		}
		perm = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(a.fs, dir, "."+filepath.Base(name)+".chatpatch-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = a.fs.Remove(tmpName)
		return cause
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := a.fs.Chmod(tmpName, perm); err != nil {
		return cleanup(err)
	}
	if err := a.fs.Rename(tmpName, name); err != nil {
		return cleanup(err)
	}
	return nil
}

func (a *aferoFileSystem) Remove(name string) error {
	info, err := a.fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	return a.fs.Remove(name)
}

func (a *aferoFileSystem) Exists(name string) (bool, error) {
	return afero.Exists(a.fs, name)
}

// FilesystemOptions augments ApplierOptions with the working directory that
// patch paths are resolved against.
type FilesystemOptions struct {
	Options
	WorkingDir string
	DryRun     bool
	Logger     logging.Logger
}

// ApplyFilesystem applies operations to the OS file system. Every path is
// sandboxed to the working directory.
func ApplyFilesystem(ctx context.Context, operations []Operation, opts FilesystemOptions) (Result, error) {
	root, err := workingDir(opts.WorkingDir)
	if err != nil {
		return Result{}, err
	}
	applier := NewApplier(NewOSFileSystem(), ApplierOptions{
		Options: opts.Options,
		Resolve: SandboxResolver(root),
		DryRun:  opts.DryRun,
		Logger:  opts.Logger,
	})
	return applier.Apply(ctx, operations)
}

// ApplyFilesystemPatch parses a raw patch payload and applies it to the file system.
func ApplyFilesystemPatch(ctx context.Context, patchBody string, opts FilesystemOptions) (Result, error) {
	operations, err := Parse(patchBody)
	if err != nil {
		return Result{}, err
	}
	return ApplyFilesystem(ctx, operations, opts)
}

// SandboxResolver resolves declared paths inside root, following symlinks
// only while they stay within it.
func SandboxResolver(root string) ResolveFunc {
	return func(declared string) (string, error) {
		return sandbox.Resolve(root, declared)
	}
}

func workingDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory %s: %w", dir, err)
	}
	return abs, nil
}

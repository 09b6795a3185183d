package patch

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/asynkron/chatpatch/pkg/sandbox"
)

const memoryRoot = "/"

// ApplyToMemory applies operations to an in-memory document store keyed by
// slash-separated relative paths. The provided map is not mutated; the
// updated snapshot is returned.
func ApplyToMemory(ctx context.Context, operations []Operation, files map[string]string, opts Options) (map[string]string, Result, error) {
	memfs := afero.NewMemMapFs()
	for name, content := range files {
		target, err := sandbox.ResolveLexical(memoryRoot, name)
		if err != nil {
			return nil, Result{}, &Error{Kind: KindSecurity, Path: name, Message: "path rejected", Err: err}
		}
		if err := memfs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, Result{}, ioError(name, "load", err)
		}
		if err := afero.WriteFile(memfs, target, []byte(content), 0o644); err != nil {
			return nil, Result{}, ioError(name, "load", err)
		}
	}

	applier := NewApplier(NewAferoFileSystem(memfs), ApplierOptions{
		Options: opts,
		Resolve: func(declared string) (string, error) {
			return sandbox.ResolveLexical(memoryRoot, declared)
		},
	})
	result, err := applier.Apply(ctx, operations)
	if err != nil {
		return nil, result, err
	}

	snapshot, err := snapshotMemory(memfs)
	if err != nil {
		return nil, result, err
	}
	return snapshot, result, nil
}

// ApplyMemoryPatch parses a raw patch payload and applies it to an in-memory map of files.
func ApplyMemoryPatch(ctx context.Context, patchBody string, files map[string]string, opts Options) (map[string]string, Result, error) {
	operations, err := Parse(patchBody)
	if err != nil {
		return nil, Result{}, err
	}
	return ApplyToMemory(ctx, operations, files, opts)
}

func snapshotMemory(memfs afero.Fs) (map[string]string, error) {
	snapshot := make(map[string]string)
	err := afero.Walk(memfs, memoryRoot, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, err := afero.ReadFile(memfs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(memoryRoot, path)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, ioError("", "snapshot", err)
	}
	return snapshot, nil
}

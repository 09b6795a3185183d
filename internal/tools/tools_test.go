package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asynkron/chatpatch/pkg/patch"
	"github.com/asynkron/chatpatch/pkg/sandbox"
)

func memoryEnv(t *testing.T, files map[string]string) Env {
	t.Helper()
	fsys := patch.NewMemoryFileSystem()
	for name, content := range files {
		require.NoError(t, fsys.WriteFile("/"+name, []byte(content)))
	}
	return Env{
		Root: "/",
		FS:   fsys,
		Resolve: func(declared string) (string, error) {
			return sandbox.ResolveLexical("/", declared)
		},
	}
}

func readFile(t *testing.T, env Env, name string) string {
	t.Helper()
	content, err := env.FS.ReadFile("/" + name)
	require.NoError(t, err)
	return string(content)
}

func newRegistry(t *testing.T, env Env) *Registry {
	t.Helper()
	registry, err := NewDefaultRegistry(env)
	require.NoError(t, err)
	return registry
}

func TestRegistryListsDefaultTools(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, memoryEnv(t, nil))
	var names []string
	for _, tool := range registry.Tools() {
		names = append(names, tool.Name())
		require.NotEmpty(t, tool.Description())
	}
	require.Equal(t, []string{"chat_batch", "chat_edit", "chat_patch", "chat_write"}, names)
}

func TestRegistryRejectsDuplicateAndUnknown(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, nil)
	registry := newRegistry(t, env)
	require.Error(t, registry.Register(NewWriteTool(env)))

	_, err := registry.Call(context.Background(), "chat_read", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryValidatesArguments(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, memoryEnv(t, nil))

	for name, params := range map[string]map[string]any{
		"missing field": {"filePath": "a.txt"},
		"wrong type":    {"filePath": "a.txt", "content": 42},
		"extra field":   {"filePath": "a.txt", "content": "x", "mode": "append"},
	} {
		_, err := registry.Call(context.Background(), "chat_write", params)
		var validation *ValidationError
		require.ErrorAs(t, err, &validation, name)
		require.Equal(t, "chat_write", validation.Tool)
		require.NotEmpty(t, validation.Issues, name)
	}
}

func TestPatchToolAppliesPatch(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, map[string]string{"b.txt": "foo\nbar\nbaz"})
	registry := newRegistry(t, env)

	output, err := registry.Call(context.Background(), "chat_patch", map[string]any{
		"patchText": strings.Join([]string{
			"*** Begin Patch",
			"*** Add File: a.txt",
			"+hello",
			"*** Update File: b.txt",
			"@@ bar",
			"-bar",
			"+qux",
			"*** End Patch",
		}, "\n"),
	})
	require.NoError(t, err)
	require.Equal(t, "Added: a.txt\nModified: b.txt", output)
	require.Equal(t, "hello", readFile(t, env, "a.txt"))
	require.Equal(t, "foo\nqux\nbaz", readFile(t, env, "b.txt"))
}

func TestPatchToolReturnsTypedErrors(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, memoryEnv(t, nil))
	_, err := registry.Call(context.Background(), "chat_patch", map[string]any{"patchText": "garbage"})
	require.ErrorIs(t, err, patch.ErrMalformedPatch)
}

func TestPatchToolDryRun(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, nil)
	env.DryRun = true
	registry := newRegistry(t, env)

	output, err := registry.Call(context.Background(), "chat_patch", map[string]any{
		"patchText": "*** Begin Patch\n*** Add File: a.txt\n+x\n*** End Patch",
	})
	require.NoError(t, err)
	require.Equal(t, "Added: a.txt", output)
	exists, err := env.FS.Exists("/a.txt")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestWriteToolCreatesParents(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, nil)
	registry := newRegistry(t, env)

	output, err := registry.Call(context.Background(), "chat_write", map[string]any{
		"filePath": "docs/guide/intro.md",
		"content":  "# Intro\n",
	})
	require.NoError(t, err)
	require.Equal(t, "Wrote docs/guide/intro.md", output)
	require.Equal(t, "# Intro\n", readFile(t, env, "docs/guide/intro.md"))
}

func TestWriteToolRejectsEscape(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, memoryEnv(t, nil))
	_, err := registry.Call(context.Background(), "chat_write", map[string]any{
		"filePath": "../outside.txt",
		"content":  "x",
	})
	require.ErrorIs(t, err, patch.ErrSecurity)
}

func TestEditTool(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, map[string]string{"main.go": "a := 1\nb := 1\n"})
	registry := newRegistry(t, env)
	ctx := context.Background()

	_, err := registry.Call(ctx, "chat_edit", map[string]any{
		"filePath": "main.go", "oldString": "1", "newString": "2",
	})
	require.ErrorIs(t, err, ErrMultipleMatches)

	output, err := registry.Call(ctx, "chat_edit", map[string]any{
		"filePath": "main.go", "oldString": "a := 1", "newString": "a := 3",
	})
	require.NoError(t, err)
	require.Equal(t, "Updated main.go", output)
	require.Equal(t, "a := 3\nb := 1\n", readFile(t, env, "main.go"))

	_, err = registry.Call(ctx, "chat_edit", map[string]any{
		"filePath": "main.go", "oldString": "1", "newString": "9", "replaceAll": true,
	})
	require.NoError(t, err)
	require.Equal(t, "a := 3\nb := 9\n", readFile(t, env, "main.go"))

	_, err = registry.Call(ctx, "chat_edit", map[string]any{
		"filePath": "missing.go", "oldString": "x", "newString": "y",
	})
	require.ErrorIs(t, err, patch.ErrFileNotFound)
}

func TestReplaceOnce(t *testing.T) {
	t.Parallel()

	_, err := ReplaceOnce("abc", "", "x", false)
	require.ErrorIs(t, err, ErrEmptyOldString)
	_, err = ReplaceOnce("abc", "b", "b", false)
	require.ErrorIs(t, err, ErrIdenticalStrings)
	_, err = ReplaceOnce("abc", "z", "y", false)
	require.ErrorIs(t, err, ErrOldStringMissing)

	got, err := ReplaceOnce("abc", "b", "B", false)
	require.NoError(t, err)
	require.Equal(t, "aBc", got)
}

func TestBatchToolRunsCallsInOrder(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, map[string]string{"x.txt": "one\n"})
	registry := newRegistry(t, env)

	output, err := registry.Call(context.Background(), "chat_batch", map[string]any{
		"tool_calls": []any{
			map[string]any{"tool": "chat_write", "parameters": map[string]any{"filePath": "a.txt", "content": "A"}},
			map[string]any{"tool": "chat_todoread"},
			map[string]any{"tool": "chat_edit", "parameters": map[string]any{"filePath": "x.txt", "oldString": "two", "newString": "2"}},
			map[string]any{"tool": "chat_write", "parameters": map[string]any{"filePath": "b.txt", "content": "B"}},
			map[string]any{"tool": "chat_batch", "parameters": map[string]any{"tool_calls": []any{}}},
		},
	})
	require.NoError(t, err)

	parts := strings.Split(output, "\n\n")
	require.Len(t, parts, 5)
	require.Equal(t, "Wrote a.txt", parts[0])
	require.Equal(t, "Unsupported tool: chat_todoread", parts[1])
	require.True(t, strings.HasPrefix(parts[2], "Error: "), parts[2])
	require.Contains(t, parts[2], "oldString not found")
	require.Equal(t, "Wrote b.txt", parts[3])
	require.True(t, strings.HasPrefix(parts[4], "Error: "), parts[4])
}

func TestBatchToolHonoursLimit(t *testing.T) {
	t.Parallel()

	env := memoryEnv(t, nil)
	env.BatchLimit = 2
	registry := newRegistry(t, env)

	calls := make([]any, 0, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		calls = append(calls, map[string]any{
			"tool":       "chat_write",
			"parameters": map[string]any{"filePath": name + ".txt", "content": name},
		})
	}
	output, err := registry.Call(context.Background(), "chat_batch", map[string]any{"tool_calls": calls})
	require.NoError(t, err)
	require.Equal(t, "Wrote a.txt\n\nWrote b.txt", output)

	exists, err := env.FS.Exists("/c.txt")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestBatchToolRequiresCalls(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, memoryEnv(t, nil))
	_, err := registry.Call(context.Background(), "chat_batch", map[string]any{"tool_calls": []any{}})
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
}

func TestNewOSEnvSandboxesToRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env, err := NewOSEnv(dir)
	require.NoError(t, err)
	registry := newRegistry(t, env)

	output, err := registry.Call(context.Background(), "chat_write", map[string]any{
		"filePath": "nested/file.txt",
		"content":  "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "Wrote nested/file.txt", output)

	content, err := os.ReadFile(filepath.Join(dir, "nested", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(content))
}

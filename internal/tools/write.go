package tools

import (
	"context"
	"fmt"
)

// WriteTool replaces the whole content of a file, creating it if needed.
type WriteTool struct {
	env Env
}

// NewWriteTool returns the chat_write tool.
func NewWriteTool(env Env) *WriteTool {
	return &WriteTool{env: env}
}

func (t *WriteTool) Name() string { return "chat_write" }

func (t *WriteTool) Description() string {
	return `Write file contents.

- Overwrites the entire file; parent directories are created.
- Use chat_edit or chat_patch for targeted changes.`
}

func (t *WriteTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{"type": "string", "minLength": 1, "description": "Path of the file to write."},
			"content":  map[string]any{"type": "string", "description": "The complete new content."},
		},
		"required":             []any{"filePath", "content"},
		"additionalProperties": false,
	}
}

func (t *WriteTool) Run(ctx context.Context, params map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := t.env.resolve(stringParam(params, "filePath"))
	if err != nil {
		return "", err
	}
	if err := t.env.fileSystem().WriteFile(target, []byte(stringParam(params, "content"))); err != nil {
		return "", fmt.Errorf("write %s: %w", t.env.display(target), err)
	}
	return "Wrote " + t.env.display(target), nil
}

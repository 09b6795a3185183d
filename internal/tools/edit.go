package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/asynkron/chatpatch/pkg/patch"
)

// Errors returned by ReplaceOnce.
var (
	ErrEmptyOldString   = errors.New("oldString must not be empty")
	ErrIdenticalStrings = errors.New("oldString and newString must be different")
	ErrOldStringMissing = errors.New("oldString not found in content")
	ErrMultipleMatches  = errors.New("oldString found multiple times; add surrounding context or set replaceAll")
)

// ReplaceOnce replaces the single exact occurrence of oldString in content.
// With all set, every occurrence is replaced instead.
func ReplaceOnce(content, oldString, newString string, all bool) (string, error) {
	if oldString == "" {
		return "", ErrEmptyOldString
	}
	if oldString == newString {
		return "", ErrIdenticalStrings
	}
	count := strings.Count(content, oldString)
	switch {
	case count == 0:
		return "", ErrOldStringMissing
	case all:
		return strings.ReplaceAll(content, oldString, newString), nil
	case count > 1:
		return "", fmt.Errorf("%w (%d occurrences)", ErrMultipleMatches, count)
	}
	return strings.Replace(content, oldString, newString, 1), nil
}

// EditTool performs exact string replacement in one file.
type EditTool struct {
	env Env
}

// NewEditTool returns the chat_edit tool.
func NewEditTool(env Env) *EditTool {
	return &EditTool{env: env}
}

func (t *EditTool) Name() string { return "chat_edit" }

func (t *EditTool) Description() string {
	return `Replace text in a file.

- oldString must match exactly, including whitespace and line breaks.
- Fails when oldString is missing or appears more than once, unless replaceAll is true.`
}

func (t *EditTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath":   map[string]any{"type": "string", "minLength": 1, "description": "Path of the file to modify."},
			"oldString":  map[string]any{"type": "string", "minLength": 1, "description": "The text to replace."},
			"newString":  map[string]any{"type": "string", "description": "The replacement text."},
			"replaceAll": map[string]any{"type": "boolean", "description": "Replace every occurrence (default false)."},
		},
		"required":             []any{"filePath", "oldString", "newString"},
		"additionalProperties": false,
	}
}

func (t *EditTool) Run(ctx context.Context, params map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	declared := stringParam(params, "filePath")
	target, err := t.env.resolve(declared)
	if err != nil {
		return "", err
	}
	fsys := t.env.fileSystem()
	content, err := fsys.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &patch.Error{Kind: patch.KindFileNotFound, Path: declared, Message: "file does not exist"}
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", t.env.display(target), err)
	}

	updated, err := ReplaceOnce(string(content), stringParam(params, "oldString"), stringParam(params, "newString"), boolParam(params, "replaceAll"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.env.display(target), err)
	}
	if err := fsys.WriteFile(target, []byte(updated)); err != nil {
		return "", fmt.Errorf("write %s: %w", t.env.display(target), err)
	}
	return "Updated " + t.env.display(target), nil
}

package tools

import (
	"context"

	"github.com/asynkron/chatpatch/pkg/patch"
)

const patchDescription = `Apply a patch to create, update, move or delete files.

Format:
- Start with "*** Begin Patch" and end with "*** End Patch".
- Use "*** Add File: <path>", "*** Update File: <path>" (optionally followed by
  "*** Move to: <path>") and "*** Delete File: <path>".
- Every line of an added file starts with "+".
- Updates hold one or more "@@ <anchor>" groups. The anchor is an exact line
  of the target file. Body lines start with " " (context), "-" (removed) or
  "+" (added).
- An edit must match exactly one place in the file; add context lines when a
  block repeats.`

// PatchTool applies "*** Begin Patch" documents inside the sandbox root.
type PatchTool struct {
	env Env
}

// NewPatchTool returns the chat_patch tool.
func NewPatchTool(env Env) *PatchTool {
	return &PatchTool{env: env}
}

func (t *PatchTool) Name() string        { return "chat_patch" }
func (t *PatchTool) Description() string { return patchDescription }

func (t *PatchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patchText": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The full patch text, including the *** Begin Patch and *** End Patch markers.",
			},
		},
		"required":             []any{"patchText"},
		"additionalProperties": false,
	}
}

// Run parses and applies the patch and returns the change summary.
func (t *PatchTool) Run(ctx context.Context, params map[string]any) (string, error) {
	operations, err := patch.Parse(stringParam(params, "patchText"))
	if err != nil {
		return "", err
	}
	applier := patch.NewApplier(t.env.FS, patch.ApplierOptions{
		Options: t.env.Options,
		Resolve: t.env.Resolve,
		DryRun:  t.env.DryRun,
		Logger:  t.env.Logger,
	})
	result, err := applier.Apply(ctx, operations)
	if err != nil {
		return "", err
	}
	return result.Summary(), nil
}

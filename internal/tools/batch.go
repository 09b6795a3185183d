package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/asynkron/chatpatch/internal/config"
	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/pkg/patch"
)

const batchToolName = "chat_batch"

// BatchTool runs several independent tool calls concurrently and joins their
// outputs in call order.
type BatchTool struct {
	registry *Registry
	limit    int
	log      logging.Logger
}

// NewBatchTool returns the chat_batch tool dispatching through registry.
// Calls beyond limit are dropped.
func NewBatchTool(registry *Registry, limit int, logger logging.Logger) *BatchTool {
	if limit <= 0 {
		limit = config.DefaultBatchLimit
	}
	return &BatchTool{registry: registry, limit: limit, log: logging.OrNoOp(logger)}
}

func (t *BatchTool) Name() string { return batchToolName }

func (t *BatchTool) Description() string {
	return fmt.Sprintf(`Run multiple tools at once.

- 1-%d tool calls per batch; extra calls are ignored.
- All calls run in parallel, so only batch independent operations.`, t.limit)
}

func (t *BatchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_calls": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tool":       map[string]any{"type": "string", "description": "Name of the tool to call."},
						"parameters": map[string]any{"type": "object", "description": "Parameters for the tool."},
					},
					"required": []any{"tool"},
				},
				"description": "The tool calls to execute.",
			},
		},
		"required":             []any{"tool_calls"},
		"additionalProperties": false,
	}
}

type batchCall struct {
	tool       string
	parameters map[string]any
}

func batchCalls(params map[string]any) []batchCall {
	raw, _ := params["tool_calls"].([]any)
	calls := make([]batchCall, 0, len(raw))
	for _, item := range raw {
		entry, _ := item.(map[string]any)
		call := batchCall{tool: stringParam(entry, "tool")}
		call.parameters, _ = entry["parameters"].(map[string]any)
		calls = append(calls, call)
	}
	return calls
}

func (t *BatchTool) Run(ctx context.Context, params map[string]any) (string, error) {
	calls := batchCalls(params)
	if len(calls) > t.limit {
		t.log.Warn(ctx, "batch truncated",
			logging.Field("requested", len(calls)),
			logging.Field("limit", t.limit),
		)
		calls = calls[:t.limit]
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for index, call := range calls {
		index, call := index, call
		g.Go(func() error {
			results[index] = t.runOne(gctx, call)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(results, "\n\n"), nil
}

func (t *BatchTool) runOne(ctx context.Context, call batchCall) string {
	if call.tool == batchToolName {
		return "Error: chat_batch cannot be nested"
	}
	if !t.registry.Has(call.tool) {
		return "Unsupported tool: " + call.tool
	}
	output, err := t.registry.Call(ctx, call.tool, call.parameters)
	if err != nil {
		return "Error: " + patch.FormatError(err)
	}
	return output
}

// Package tools exposes the patch engine and its companions as named tools
// whose JSON arguments are validated before they run.
package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/pkg/patch"
)

// Tool is a named operation callable with JSON-shaped parameters.
type Tool interface {
	Name() string
	Description() string
	// Schema is the JSON schema the parameters must satisfy.
	Schema() map[string]any
	Run(ctx context.Context, params map[string]any) (string, error)
}

// ErrUnknownTool is returned by Registry.Call for names that were never
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// ValidationError lists the schema violations found in a tool call.
type ValidationError struct {
	Tool   string
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("%s: arguments failed schema validation", e.Tool)
	}
	return fmt.Sprintf("%s: invalid arguments: %s", e.Tool, strings.Join(e.Issues, "; "))
}

type registeredTool struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	log   logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		tools: make(map[string]registeredTool),
		log:   logging.OrNoOp(logger),
	}
}

// Register compiles the tool's schema and adds it. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Schema()))
	if err != nil {
		return fmt.Errorf("tools: compile schema for %s: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tools: %s registered twice", tool.Name())
	}
	r.tools[tool.Name()] = registeredTool{tool: tool, schema: schema}
	return nil
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.tools))
	for _, entry := range r.tools {
		list = append(list, entry.tool)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Call validates params against the tool's schema and runs it.
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) (string, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := entry.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return "", fmt.Errorf("tools: validate %s arguments: %w", name, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return "", &ValidationError{Tool: name, Issues: issues}
	}

	log := r.log.WithFields(logging.Field("tool", name))
	log.Debug(ctx, "tool call started")
	output, err := entry.tool.Run(ctx, params)
	if err != nil {
		log.Warn(ctx, "tool call failed", logging.Field("error", err.Error()))
		return "", err
	}
	log.Debug(ctx, "tool call finished")
	return output, nil
}

// Env is what the file tools need to reach the workspace.
type Env struct {
	// Root is the sandbox directory. Messages report paths relative to it.
	Root    string
	FS      patch.FileSystem
	Resolve patch.ResolveFunc
	Options patch.Options
	DryRun  bool
	Logger  logging.Logger
	// BatchLimit caps the calls chat_batch runs per request.
	BatchLimit int
}

// NewOSEnv returns an Env over the real file system sandboxed to root.
func NewOSEnv(root string) (Env, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Env{}, fmt.Errorf("tools: resolve root %s: %w", root, err)
	}
	if evaluated, err := filepath.EvalSymlinks(abs); err == nil {
		abs = evaluated
	}
	return Env{
		Root:    abs,
		FS:      patch.NewOSFileSystem(),
		Resolve: patch.SandboxResolver(abs),
	}, nil
}

func (e Env) resolve(declared string) (string, error) {
	if e.Resolve == nil {
		return "", errors.New("tools: no path resolver configured")
	}
	resolved, err := e.Resolve(declared)
	if err != nil {
		return "", &patch.Error{Kind: patch.KindSecurity, Path: declared, Message: "path rejected", Err: err}
	}
	return resolved, nil
}

func (e Env) fileSystem() patch.FileSystem {
	if e.DryRun {
		return patch.NewOverlayFileSystem(e.FS)
	}
	return e.FS
}

// display renders a resolved path relative to the root for messages.
func (e Env) display(resolved string) string {
	if e.Root == "" {
		return filepath.ToSlash(resolved)
	}
	rel, err := filepath.Rel(e.Root, resolved)
	if err != nil {
		return filepath.ToSlash(resolved)
	}
	return filepath.ToSlash(rel)
}

// NewDefaultRegistry registers chat_patch, chat_write, chat_edit and
// chat_batch over env.
func NewDefaultRegistry(env Env) (*Registry, error) {
	registry := NewRegistry(env.Logger)
	for _, tool := range []Tool{
		NewPatchTool(env),
		NewWriteTool(env),
		NewEditTool(env),
		NewBatchTool(registry, env.BatchLimit, env.Logger),
	} {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

func boolParam(params map[string]any, key string) bool {
	value, _ := params[key].(bool)
	return value
}

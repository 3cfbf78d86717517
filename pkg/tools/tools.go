// Package tools holds the registry of capabilities the agent may invoke and
// the built-in tools over application state and memory.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nstogner/cortex/pkg/domain"
)

// Handler executes a tool. A returned error is reported to the model as an
// ERROR result; it does not abort the directive.
type Handler func(ctx context.Context, args map[string]any) (domain.ToolResult, error)

// Tool pairs a schema with its handler.
type Tool struct {
	Schema  domain.ToolSchema
	Handler Handler
}

// Registry maps tool names to exactly one handler each. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Schema.Name == "" || t.Handler == nil {
		return ErrInvalidTool
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Schema.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, t.Schema.Name)
	}
	r.tools[t.Schema.Name] = t
	slog.Debug("Registered tool", "name", t.Schema.Name)
	return nil
}

// MustRegister registers a tool and panics on error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", t.Schema.Name, err))
	}
}

// Schema returns the schema of a registered tool.
func (r *Registry) Schema(name string) (domain.ToolSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return domain.ToolSchema{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Schema, nil
}

// Declarations resolves names into schemas, in the given order. Unknown and
// repeated names are skipped.
func (r *Registry) Declarations(names []string) []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	out := make([]domain.ToolSchema, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, t.Schema)
	}
	return out
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the named tool. Only an unknown name is returned as an error;
// argument and handler failures come back as ERROR results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", ErrCapabilityNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(t.Schema, args); err != nil {
		return domain.Failure(name, err), nil
	}

	slog.Debug("Executing tool", "name", name)
	res, err := run(ctx, t.Handler, args)
	if err != nil {
		slog.Warn("Tool failed", "name", name, "error", err)
		return domain.Failure(name, err), nil
	}
	res.ToolName = name
	if res.Status == "" {
		res.Status = domain.StatusSuccess
	}
	return res, nil
}

func run(ctx context.Context, h Handler, args map[string]any) (res domain.ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return h(ctx, args)
}

// validateArgs checks that all required arguments are present.
func validateArgs(s domain.ToolSchema, args map[string]any) error {
	if s.Parameters == nil {
		return nil
	}
	for _, required := range s.Parameters.Required {
		v, ok := args[required]
		if !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}

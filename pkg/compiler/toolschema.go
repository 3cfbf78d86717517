package compiler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nstogner/cortex/pkg/domain"
)

// ToolSchemas describes each active tool to the model.
type ToolSchemas struct{}

func NewToolSchemas() *ToolSchemas { return &ToolSchemas{} }

func (*ToolSchemas) Name() string { return "tool_schemas" }

func (*ToolSchemas) Process(_ context.Context, in Input) ([]domain.ContextEntry, error) {
	if in.Artifacts == nil {
		return nil, nil
	}
	var out []domain.ContextEntry
	for _, name := range in.Scope.ActiveTools {
		s := in.Artifacts.Schema(name)
		if s.IsZero() {
			slog.Warn("No schema for active tool", "tool", name)
			continue
		}
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			slog.Warn("Failed to encode tool schema", "tool", name, "error", err)
			continue
		}
		out = append(out, domain.ContextEntry{
			Role:    domain.RoleSystem,
			Content: "TOOL SCHEMA: " + name + "\n" + string(b),
		})
	}
	return out, nil
}

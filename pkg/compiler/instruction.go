package compiler

import (
	"context"
	"strings"

	"github.com/nstogner/cortex/pkg/domain"
)

// DefaultInstruction is the base system instruction.
const DefaultInstruction = "You are Cortex, an assistant embedded in a task and knowledge workspace. " +
	"Use the offered tools to act on the workspace instead of describing actions. " +
	"Treat VERIFIED FACTS as ground truth and cite RELEVANT KNOWLEDGE by its memory tag."

// SystemInstruction contributes the base instruction and a per-mode addendum.
// It emits no history entries.
type SystemInstruction struct {
	Base  string
	Modes map[string]string
}

func NewSystemInstruction(base string, modes map[string]string) *SystemInstruction {
	if base == "" {
		base = DefaultInstruction
	}
	return &SystemInstruction{Base: base, Modes: modes}
}

func (*SystemInstruction) Name() string { return "system_instruction" }

func (*SystemInstruction) Process(context.Context, Input) ([]domain.ContextEntry, error) {
	return nil, nil
}

func (p *SystemInstruction) Instruction(_ context.Context, in Input) (string, error) {
	parts := []string{p.Base}
	if addendum := p.Modes[in.Scope.Mode]; addendum != "" {
		parts = append(parts, addendum)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

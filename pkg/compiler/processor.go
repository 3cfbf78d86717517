// Package compiler assembles the working context sent to the model from an
// ordered pipeline of context processors.
package compiler

import (
	"context"

	"github.com/nstogner/cortex/pkg/domain"
)

// MemorySource answers relevance queries against long-term memory.
type MemorySource interface {
	Query(ctx context.Context, text string, limit int) ([]string, error)
}

// ArtifactSource exposes the active artifacts and tool schemas of a session.
type ArtifactSource interface {
	ActiveArtifacts(ctx context.Context) ([]domain.Artifact, error)
	Schema(name string) domain.ToolSchema
}

// LayerSource resolves active layer IDs into layers in catalog order.
type LayerSource interface {
	Active(ids []string) []domain.Layer
}

// Input is everything a processor may read for one turn. Session holds the
// events before the current message; the current message itself is only
// available as Scope.CurrentMessage.
type Input struct {
	Session   []domain.Event
	Memory    MemorySource
	Artifacts ArtifactSource
	Scope     domain.Scope
}

// Processor contributes working-context entries for one concern.
type Processor interface {
	Name() string
	Process(ctx context.Context, in Input) ([]domain.ContextEntry, error)
}

// Instructor is implemented by processors that also contribute to the
// system instruction.
type Instructor interface {
	Instruction(ctx context.Context, in Input) (string, error)
}

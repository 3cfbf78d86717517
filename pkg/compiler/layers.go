package compiler

import (
	"context"

	"github.com/nstogner/cortex/pkg/domain"
)

// KnowledgeLayers engages the scope's active knowledge layers.
type KnowledgeLayers struct {
	catalog LayerSource
}

func NewKnowledgeLayers(catalog LayerSource) *KnowledgeLayers {
	return &KnowledgeLayers{catalog: catalog}
}

func (*KnowledgeLayers) Name() string { return "knowledge_layers" }

func (p *KnowledgeLayers) Process(_ context.Context, in Input) ([]domain.ContextEntry, error) {
	if p.catalog == nil {
		return nil, nil
	}
	var out []domain.ContextEntry
	for _, l := range p.catalog.Active(in.Scope.ActiveLayers) {
		out = append(out, domain.ContextEntry{
			Role:    domain.RoleSystem,
			Content: "[PROTOCOL_ENGAGED: " + l.Label + "]\n" + l.Instruction,
		})
	}
	return out, nil
}

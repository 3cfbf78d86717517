package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/nstogner/cortex/pkg/domain"
)

// DefaultRelevanceLimit is the number of memory fragments retrieved per turn.
const DefaultRelevanceLimit = 3

// Relevance retrieves memory fragments related to the current message.
type Relevance struct {
	Limit int
}

func NewRelevance(limit int) *Relevance {
	return &Relevance{Limit: limit}
}

func (*Relevance) Name() string { return "relevance" }

func (p *Relevance) Process(ctx context.Context, in Input) ([]domain.ContextEntry, error) {
	if in.Memory == nil || strings.TrimSpace(in.Scope.CurrentMessage) == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultRelevanceLimit
	}
	hits, err := in.Memory.Query(ctx, in.Scope.CurrentMessage, limit)
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	var sb strings.Builder
	sb.WriteString("RELEVANT KNOWLEDGE RETRIEVED:")
	for i, h := range hits {
		fmt.Fprintf(&sb, "\n[MEMORY_%d] %s", i, h)
	}
	return []domain.ContextEntry{{Role: domain.RoleUser, Content: sb.String()}}, nil
}

package compiler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nstogner/cortex/pkg/domain"
)

const (
	DefaultFactThreshold = 0.6
	DefaultMaxFacts      = 10
)

// Facts lists the scope's verified facts above a confidence threshold.
type Facts struct {
	Threshold float64
	Max       int
}

func NewFacts() *Facts {
	return &Facts{Threshold: DefaultFactThreshold, Max: DefaultMaxFacts}
}

func (*Facts) Name() string { return "facts" }

func (p *Facts) Process(_ context.Context, in Input) ([]domain.ContextEntry, error) {
	var kept []domain.FactChunk
	for _, f := range in.Scope.Facts {
		if f.Confidence > p.Threshold {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
	if p.Max > 0 && len(kept) > p.Max {
		kept = kept[:p.Max]
	}

	var sb strings.Builder
	sb.WriteString("VERIFIED FACTS:")
	for _, f := range kept {
		fmt.Fprintf(&sb, "\n[%s] %.2f | %s | %s", f.ID, f.Confidence, f.Source, f.Fact)
	}
	return []domain.ContextEntry{{Role: domain.RoleSystem, Content: sb.String()}}, nil
}

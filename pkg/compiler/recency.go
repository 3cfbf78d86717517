package compiler

import (
	"context"

	"github.com/nstogner/cortex/pkg/domain"
)

// DefaultRecencyWindow is the number of recent events replayed by default.
const DefaultRecencyWindow = 20

// Recency replays the most recent session events verbatim.
type Recency struct {
	MaxCount int
}

func NewRecency(maxCount int) *Recency {
	return &Recency{MaxCount: maxCount}
}

func (*Recency) Name() string { return "recency" }

func (p *Recency) Process(_ context.Context, in Input) ([]domain.ContextEntry, error) {
	events := in.Session
	if p.MaxCount <= 0 {
		return nil, nil
	}
	if len(events) > p.MaxCount {
		events = events[len(events)-p.MaxCount:]
	}
	out := make([]domain.ContextEntry, 0, len(events))
	for _, ev := range events {
		out = append(out, domain.ContextEntry{Role: ev.Kind.Role(), Content: ev.Content})
	}
	return out, nil
}

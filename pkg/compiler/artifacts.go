package compiler

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nstogner/cortex/pkg/domain"
)

// DefaultArtifactChars is the per-file character limit.
const DefaultArtifactChars = 5000

// Artifacts inlines the session's active files.
type Artifacts struct {
	MaxChars int
}

func NewArtifacts(maxChars int) *Artifacts {
	return &Artifacts{MaxChars: maxChars}
}

func (*Artifacts) Name() string { return "artifacts" }

func (p *Artifacts) Process(ctx context.Context, in Input) ([]domain.ContextEntry, error) {
	if in.Artifacts == nil {
		return nil, nil
	}
	arts, err := in.Artifacts.ActiveArtifacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading artifacts: %w", err)
	}
	if len(arts) == 0 {
		return nil, nil
	}
	limit := p.MaxChars
	if limit <= 0 {
		limit = DefaultArtifactChars
	}

	blocks := make([]string, 0, len(arts))
	for _, a := range arts {
		blocks = append(blocks, renderFile(a, limit))
	}
	return []domain.ContextEntry{{Role: domain.RoleUser, Content: strings.Join(blocks, "\n\n")}}, nil
}

func renderFile(a domain.Artifact, limit int) string {
	text := strings.ToValidUTF8(string(a.Data), "�")
	total := utf8.RuneCountInString(text)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- START FILE: %s (%s) ---\n", a.Name, a.MimeType)
	if total > limit {
		sb.WriteString(string([]rune(text)[:limit]))
		fmt.Fprintf(&sb, "\n[TRUNCATED: showing %d of %d characters]", limit, total)
	} else {
		sb.WriteString(text)
	}
	fmt.Fprintf(&sb, "\n--- END FILE: %s ---", a.Name)
	return sb.String()
}

package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/layer"
	"github.com/nstogner/cortex/pkg/memory"
	"github.com/nstogner/cortex/pkg/store/memstore"
)

type fakeMemory struct {
	hits []string
	err  error
	got  string
}

func (m *fakeMemory) Query(_ context.Context, text string, limit int) ([]string, error) {
	m.got = text
	if len(m.hits) > limit {
		return m.hits[:limit], m.err
	}
	return m.hits, m.err
}

type fakeArtifacts struct {
	arts    []domain.Artifact
	schemas map[string]domain.ToolSchema
}

func (f *fakeArtifacts) ActiveArtifacts(context.Context) ([]domain.Artifact, error) {
	return f.arts, nil
}

func (f *fakeArtifacts) Schema(name string) domain.ToolSchema {
	return f.schemas[name]
}

func events(n int) []domain.Event {
	kinds := []domain.EventKind{domain.EventUserMessage, domain.EventModelResponse, domain.EventToolCall, domain.EventToolResult, domain.EventSystemNote}
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{Kind: kinds[i%len(kinds)], Content: fmt.Sprintf("e%d", i)}
	}
	return out
}

func TestRecency(t *testing.T) {
	ctx := context.Background()
	for _, c := range []struct{ k, l int }{{20, 5}, {3, 5}, {5, 5}, {0, 5}, {4, 0}} {
		got, err := NewRecency(c.k).Process(ctx, Input{Session: events(c.l)})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		want := min(c.k, c.l)
		if len(got) != want {
			t.Errorf("k=%d l=%d: len = %d, want %d", c.k, c.l, len(got), want)
			continue
		}
		for i, e := range got {
			if wantContent := fmt.Sprintf("e%d", c.l-want+i); e.Content != wantContent {
				t.Errorf("k=%d l=%d: entry %d = %q, want %q", c.k, c.l, i, e.Content, wantContent)
			}
		}
	}

	got, _ := NewRecency(5).Process(ctx, Input{Session: events(5)})
	wantRoles := []domain.Role{domain.RoleUser, domain.RoleModel, domain.RoleFunction, domain.RoleFunction, domain.RoleUser}
	for i, e := range got {
		if e.Role != wantRoles[i] {
			t.Errorf("entry %d role = %s, want %s", i, e.Role, wantRoles[i])
		}
	}
}

func TestRelevanceQubic(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(memstore.New())
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	mem.Store(ctx, "qubic", "Qubic uses proof of useful work", memory.WithTags("crypto"))

	got, err := NewRelevance(DefaultRelevanceLimit).Process(ctx, Input{
		Memory: mem,
		Scope:  domain.Scope{CurrentMessage: "tell me about qubic"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].Role != domain.RoleUser {
		t.Fatalf("entries = %+v, want one user entry", got)
	}
	if !strings.Contains(got[0].Content, "[MEMORY_0]") || !strings.Contains(got[0].Content, "Qubic uses proof of useful work") {
		t.Errorf("content = %q", got[0].Content)
	}
	if !strings.HasPrefix(got[0].Content, "RELEVANT KNOWLEDGE RETRIEVED:") {
		t.Errorf("missing label: %q", got[0].Content)
	}
}

func TestRelevanceNoHits(t *testing.T) {
	m := &fakeMemory{}
	got, err := NewRelevance(3).Process(context.Background(), Input{Memory: m, Scope: domain.Scope{CurrentMessage: "hi there"}})
	if err != nil || len(got) != 0 {
		t.Errorf("got %+v, %v; want nothing", got, err)
	}
	if m.got != "hi there" {
		t.Errorf("queried %q", m.got)
	}
}

func TestRelevanceCapsAtLimit(t *testing.T) {
	m := &fakeMemory{hits: []string{"a", "b", "c", "d"}}
	got, _ := NewRelevance(3).Process(context.Background(), Input{Memory: m, Scope: domain.Scope{CurrentMessage: "x"}})
	if strings.Contains(got[0].Content, "[MEMORY_3]") || !strings.Contains(got[0].Content, "[MEMORY_2] c") {
		t.Errorf("content = %q", got[0].Content)
	}
}

func TestArtifacts(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("é", 5001)
	src := &fakeArtifacts{arts: []domain.Artifact{
		{Name: "a.txt", MimeType: "text/plain", Data: []byte("hello")},
		{Name: "big.md", MimeType: "text/markdown", Data: []byte(long)},
		{Name: "bad.bin", MimeType: "application/octet-stream", Data: []byte{0xff, 'o', 'k'}},
	}}

	got, err := NewArtifacts(DefaultArtifactChars).Process(ctx, Input{Artifacts: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].Role != domain.RoleUser {
		t.Fatalf("entries = %d, want one user entry", len(got))
	}
	c := got[0].Content
	for _, want := range []string{
		"--- START FILE: a.txt (text/plain) ---\nhello\n--- END FILE: a.txt ---",
		"[TRUNCATED: showing 5000 of 5001 characters]",
		"--- START FILE: big.md (text/markdown) ---",
		"�ok",
	} {
		if !strings.Contains(c, want) {
			t.Errorf("content missing %q", want)
		}
	}
	if strings.Count(c, "é") != 5000 {
		t.Errorf("kept %d characters of big.md, want 5000", strings.Count(c, "é"))
	}

	none, _ := NewArtifacts(0).Process(ctx, Input{Artifacts: &fakeArtifacts{}})
	if len(none) != 0 {
		t.Errorf("no artifacts produced %d entries", len(none))
	}
}

func TestToolSchemas(t *testing.T) {
	src := &fakeArtifacts{schemas: map[string]domain.ToolSchema{
		"task_list": {Name: "task_list", Description: "List tasks"},
	}}
	got, err := NewToolSchemas().Process(context.Background(), Input{
		Artifacts: src,
		Scope:     domain.Scope{ActiveTools: []string{"task_list", "missing"}},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].Role != domain.RoleSystem {
		t.Fatalf("entries = %+v", got)
	}
	if !strings.HasPrefix(got[0].Content, "TOOL SCHEMA: task_list\n{") || !strings.Contains(got[0].Content, `"description": "List tasks"`) {
		t.Errorf("content = %q", got[0].Content)
	}
}

func TestFacts(t *testing.T) {
	var facts []domain.FactChunk
	for i := 0; i < 15; i++ {
		facts = append(facts, domain.FactChunk{ID: fmt.Sprintf("F%d", i), Fact: "f", Source: "s", Confidence: 0.61 + float64(i)*0.02})
	}
	facts = append(facts, domain.FactChunk{ID: "LOW", Confidence: 0.6}, domain.FactChunk{ID: "LOWER", Confidence: 0.1})

	got, err := NewFacts().Process(context.Background(), Input{Scope: domain.Scope{Facts: facts}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].Role != domain.RoleSystem {
		t.Fatalf("entries = %+v", got)
	}
	lines := strings.Split(got[0].Content, "\n")
	if lines[0] != "VERIFIED FACTS:" || len(lines) != 11 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[1] != "[F14] 0.89 | s | f" {
		t.Errorf("first fact = %q", lines[1])
	}
	if strings.Contains(got[0].Content, "LOW") {
		t.Error("facts at or below threshold were kept")
	}

	empty, _ := NewFacts().Process(context.Background(), Input{Scope: domain.Scope{Facts: facts[15:]}})
	if len(empty) != 0 {
		t.Errorf("low-confidence facts produced %d entries", len(empty))
	}
}

func TestSystemInstruction(t *testing.T) {
	p := NewSystemInstruction("Base.", map[string]string{"planning": "Plan first."})
	entries, _ := p.Process(context.Background(), Input{})
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
	got, _ := p.Instruction(context.Background(), Input{Scope: domain.Scope{Mode: "planning"}})
	if got != "Base.\n\nPlan first." {
		t.Errorf("Instruction = %q", got)
	}
	got, _ = p.Instruction(context.Background(), Input{Scope: domain.Scope{Mode: "other"}})
	if got != "Base." {
		t.Errorf("Instruction = %q", got)
	}
	if NewSystemInstruction("", nil).Base != DefaultInstruction {
		t.Error("empty base did not default")
	}
}

func TestKnowledgeLayers(t *testing.T) {
	c := layer.NewCatalog(memstore.New(), layer.Defaults()...)
	got, err := NewKnowledgeLayers(c).Process(context.Background(), Input{
		Scope: domain.Scope{ActiveLayers: []string{layer.Analyst, "nope", layer.Archivist}},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].Content, "[PROTOCOL_ENGAGED: ARCHIVIST]\n") || got[0].Role != domain.RoleSystem {
		t.Errorf("first entry = %+v", got[0])
	}
	if !strings.HasPrefix(got[1].Content, "[PROTOCOL_ENGAGED: ANALYST]\n") {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestRelevanceError(t *testing.T) {
	_, err := NewRelevance(3).Process(context.Background(), Input{
		Memory: &fakeMemory{err: errors.New("down")},
		Scope:  domain.Scope{CurrentMessage: "x"},
	})
	if err == nil {
		t.Error("expected error")
	}
}

package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/layer"
	"github.com/nstogner/cortex/pkg/store/memstore"
)

// stubProcessor emits fixed output after an optional delay.
type stubProcessor struct {
	name        string
	entries     []domain.ContextEntry
	instruction string
	delay       time.Duration
	err         error
	panics      bool
}

func (s *stubProcessor) Name() string { return s.name }

func (s *stubProcessor) Process(ctx context.Context, _ Input) ([]domain.ContextEntry, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("kaboom")
	}
	return s.entries, s.err
}

type stubInstructor struct {
	stubProcessor
}

func (s *stubInstructor) Instruction(context.Context, Input) (string, error) {
	return s.instruction, nil
}

func entry(c string) []domain.ContextEntry {
	return []domain.ContextEntry{{Role: domain.RoleSystem, Content: c}}
}

func contents(entries []domain.ContextEntry) string {
	var parts []string
	for _, e := range entries {
		parts = append(parts, e.Content)
	}
	return strings.Join(parts, ",")
}

func TestCompileOrderIndependentOfCompletion(t *testing.T) {
	procs := []Processor{
		&stubInstructor{stubProcessor{name: "i1", instruction: "first", delay: 30 * time.Millisecond}},
		&stubProcessor{name: "a", entries: entry("a"), delay: 20 * time.Millisecond},
		&stubInstructor{stubProcessor{name: "i2", instruction: "second", entries: entry("b")}},
		&stubProcessor{name: "c", entries: entry("c"), delay: 10 * time.Millisecond},
	}
	for _, par := range []int{0, 1, 2, 4} {
		res := New(procs, WithParallelism(par)).Compile(context.Background(), Input{})
		if got := contents(res.History); got != "a,b,c" {
			t.Errorf("parallelism %d: history = %s, want a,b,c", par, got)
		}
		if res.SystemInstruction != "first\n\nsecond" {
			t.Errorf("parallelism %d: instruction = %q", par, res.SystemInstruction)
		}
	}
}

func TestCompileIsolatesFailures(t *testing.T) {
	procs := []Processor{
		&stubInstructor{stubProcessor{name: "base", instruction: "base"}},
		&stubProcessor{name: "broken", entries: entry("lost"), err: errors.New("store down")},
		&stubInstructor{stubProcessor{name: "panicky", instruction: "lost", panics: true}},
		&stubInstructor{stubProcessor{name: "empty", instruction: "  "}},
		&stubProcessor{name: "ok", entries: entry("kept")},
		&stubInstructor{stubProcessor{name: "tail", instruction: "tail"}},
	}
	res := New(procs).Compile(context.Background(), Input{})
	if got := contents(res.History); got != "kept" {
		t.Errorf("history = %s, want kept", got)
	}
	if res.SystemInstruction != "base\n\ntail" {
		t.Errorf("instruction = %q, want base then tail", res.SystemInstruction)
	}
}

func TestCompileEmptyPipeline(t *testing.T) {
	res := New(nil).Compile(context.Background(), Input{})
	if len(res.History) != 0 || res.SystemInstruction != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestDefaultPipeline(t *testing.T) {
	ctx := context.Background()
	catalog := layer.NewCatalog(memstore.New(), layer.Defaults()...)
	c := Default(DefaultConfig{
		Instruction: "You are a test.",
		Modes:       map[string]string{"review": "Be critical."},
		Layers:      catalog,
	})

	var names []string
	for _, p := range c.Processors() {
		names = append(names, p.Name())
	}
	want := "system_instruction,knowledge_layers,facts,tool_schemas,relevance,artifacts,recency"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("pipeline = %s", got)
	}

	res := c.Compile(ctx, Input{
		Session: []domain.Event{
			{Kind: domain.EventUserMessage, Content: "earlier question"},
			{Kind: domain.EventModelResponse, Content: "earlier answer"},
		},
		Memory: &fakeMemory{hits: []string{"[ARTIFACT: k] Summary: s"}},
		Artifacts: &fakeArtifacts{
			arts:    []domain.Artifact{{Name: "n.txt", MimeType: "text/plain", Data: []byte("body")}},
			schemas: map[string]domain.ToolSchema{"task_list": {Name: "task_list"}},
		},
		Scope: domain.Scope{
			CurrentMessage: "current question",
			Mode:           "review",
			ActiveLayers:   []string{layer.Archivist},
			ActiveTools:    []string{"task_list"},
			Facts:          []domain.FactChunk{{ID: "F1", Fact: "sky is blue", Confidence: 0.9, Source: "obs"}},
		},
	})

	if res.SystemInstruction != "You are a test.\n\nBe critical." {
		t.Errorf("instruction = %q", res.SystemInstruction)
	}
	prefixes := []string{
		"[PROTOCOL_ENGAGED: ARCHIVIST]",
		"VERIFIED FACTS:",
		"TOOL SCHEMA: task_list",
		"RELEVANT KNOWLEDGE RETRIEVED:",
		"--- START FILE: n.txt",
		"earlier question",
		"earlier answer",
	}
	if len(res.History) != len(prefixes) {
		t.Fatalf("history len = %d, want %d: %s", len(res.History), len(prefixes), contents(res.History))
	}
	for i, p := range prefixes {
		if !strings.HasPrefix(res.History[i].Content, p) {
			t.Errorf("history[%d] = %q, want prefix %q", i, res.History[i].Content, p)
		}
	}
	for _, e := range res.History {
		if strings.Contains(e.Content, "current question") {
			t.Error("current message leaked into history")
		}
	}
}

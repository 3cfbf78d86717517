package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/cortex/pkg/domain"
)

// Result is a compiled working context.
type Result struct {
	History           []domain.ContextEntry
	SystemInstruction string
}

// Compiler runs an ordered pipeline of processors.
type Compiler struct {
	processors  []Processor
	parallelism int
}

type Option func(*Compiler)

// WithParallelism bounds the number of processors running at once. 1 runs
// the pipeline sequentially.
func WithParallelism(n int) Option {
	return func(c *Compiler) { c.parallelism = n }
}

func New(processors []Processor, opts ...Option) *Compiler {
	c := &Compiler{processors: processors, parallelism: len(processors)}
	for _, o := range opts {
		o(c)
	}
	if c.parallelism <= 0 {
		c.parallelism = 1
	}
	return c
}

// DefaultConfig parameterizes the standard pipeline.
type DefaultConfig struct {
	Instruction    string
	Modes          map[string]string
	Layers         LayerSource
	RecencyWindow  int
	ArtifactChars  int
	RelevanceLimit int
	FactThreshold  float64
}

// Default builds the standard pipeline: system instruction, knowledge layers,
// facts, tool schemas, relevance, artifacts and recency.
func Default(cfg DefaultConfig, opts ...Option) *Compiler {
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = DefaultRecencyWindow
	}
	facts := NewFacts()
	if cfg.FactThreshold > 0 {
		facts.Threshold = cfg.FactThreshold
	}
	return New([]Processor{
		NewSystemInstruction(cfg.Instruction, cfg.Modes),
		NewKnowledgeLayers(cfg.Layers),
		facts,
		NewToolSchemas(),
		NewRelevance(cfg.RelevanceLimit),
		NewArtifacts(cfg.ArtifactChars),
		NewRecency(cfg.RecencyWindow),
	}, opts...)
}

// Processors returns the pipeline in order.
func (c *Compiler) Processors() []Processor {
	return append([]Processor(nil), c.processors...)
}

type slot struct {
	entries     []domain.ContextEntry
	instruction string
}

// Compile runs every processor and concatenates their output in pipeline
// order. A failing processor is logged and contributes nothing.
func (c *Compiler) Compile(ctx context.Context, in Input) Result {
	slots := make([]slot, len(c.processors))

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, p := range c.processors {
		g.Go(func() error {
			s, err := runProcessor(ctx, p, in)
			if err != nil {
				slog.Warn("Context processor failed", "processor", p.Name(), "error", err)
				recordProcessorFailure(p.Name())
				return nil
			}
			slots[i] = s
			return nil
		})
	}
	g.Wait()

	var res Result
	var instructions []string
	for _, s := range slots {
		res.History = append(res.History, s.entries...)
		if strings.TrimSpace(s.instruction) != "" {
			instructions = append(instructions, s.instruction)
		}
	}
	res.SystemInstruction = strings.Join(instructions, "\n\n")
	recordCompilation()
	slog.Debug("Compiled context", "entries", len(res.History), "instructionChars", len(res.SystemInstruction))
	return res
}

func runProcessor(ctx context.Context, p Processor, in Input) (s slot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	entries, err := p.Process(ctx, in)
	if err != nil {
		return slot{}, err
	}
	s.entries = entries
	if ins, ok := p.(Instructor); ok {
		s.instruction, err = ins.Instruction(ctx, in)
		if err != nil {
			return slot{}, err
		}
	}
	return s, nil
}

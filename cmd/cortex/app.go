package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nstogner/cortex/pkg/agent"
	"github.com/nstogner/cortex/pkg/appstate"
	"github.com/nstogner/cortex/pkg/artifact"
	"github.com/nstogner/cortex/pkg/compiler"
	"github.com/nstogner/cortex/pkg/config"
	"github.com/nstogner/cortex/pkg/controller"
	"github.com/nstogner/cortex/pkg/layer"
	"github.com/nstogner/cortex/pkg/memory"
	"github.com/nstogner/cortex/pkg/model/gemini"
	"github.com/nstogner/cortex/pkg/store/sqlite"
	"github.com/nstogner/cortex/pkg/tools"
)

var errNoAPIKey = errors.New("GEMINI_API_KEY environment variable not set")

// app is the fully wired system.
type app struct {
	cfg        *config.Config
	store      *sqlite.Store
	provider   *gemini.Provider
	memory     *memory.Memory
	registry   *tools.Registry
	catalog    *layer.Catalog
	artifacts  *artifact.Collection
	controller *controller.Controller
}

// newApp wires every component. When requireModel is false and no API key is
// configured, the model provider and semantic memory are left out.
func newApp(ctx context.Context, cfg *config.Config, requireModel bool) (*app, error) {
	if cfg.APIKey == "" && requireModel {
		return nil, errNoAPIKey
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	a := &app{cfg: cfg, store: st}

	var memOpts []memory.Option
	if cfg.APIKey != "" {
		a.provider, err = gemini.New(ctx, cfg.APIKey)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("initializing Gemini provider: %w", err)
		}
		memOpts = append(memOpts, memory.WithEmbedder(a.provider.Embedder(cfg.Model.EmbeddingModel), cfg.Model.EmbeddingCache))
	}
	a.memory, err = memory.New(st, memOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := a.memory.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}

	a.registry = tools.NewRegistry()
	if err := tools.RegisterBuiltins(a.registry, tools.Deps{State: appstate.New(st), Memory: a.memory}); err != nil {
		st.Close()
		return nil, err
	}

	a.catalog = layer.NewCatalog(st, layer.Defaults()...)
	if err := a.catalog.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a.artifacts = artifact.NewCollection(st, a.registry)

	var compOpts []compiler.Option
	if cfg.Compiler.Parallelism > 0 {
		compOpts = append(compOpts, compiler.WithParallelism(cfg.Compiler.Parallelism))
	}
	comp := compiler.Default(compiler.DefaultConfig{
		Instruction:    cfg.Compiler.Instruction,
		Modes:          cfg.Compiler.Modes,
		Layers:         a.catalog,
		RecencyWindow:  cfg.Compiler.RecencyWindow,
		ArtifactChars:  cfg.Compiler.ArtifactChars,
		RelevanceLimit: cfg.Compiler.RelevanceLimit,
		FactThreshold:  cfg.Compiler.FactThreshold,
	}, compOpts...)

	ctrlCfg := controller.Config{
		Sessions:  st,
		Records:   st,
		Compiler:  comp,
		Memory:    a.memory,
		Artifacts: a.artifacts,
		Agent: agent.Config{
			Tools:        a.registry,
			Layers:       a.catalog,
			BaseTools:    cfg.Agent.BaseTools,
			DefaultModel: cfg.Model.Name,
		},
	}
	if a.provider != nil {
		ctrlCfg.Provider = a.provider
	}
	a.controller = controller.New(ctrlCfg)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

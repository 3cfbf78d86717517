// Package controller drives sessions: every user message appended to a
// session becomes one agent directive over a freshly compiled working context.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nstogner/cortex/pkg/agent"
	"github.com/nstogner/cortex/pkg/artifact"
	"github.com/nstogner/cortex/pkg/compiler"
	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/model"
	"github.com/nstogner/cortex/pkg/store"
)

// ErrInvalidFact is returned for facts with no text or a confidence outside [0,1].
var ErrInvalidFact = errors.New("invalid fact")

// Config wires a Controller.
type Config struct {
	Sessions  store.SessionStore
	Records   store.RecordStore
	Provider  model.Provider
	Compiler  *compiler.Compiler
	Memory    compiler.MemorySource
	Artifacts *artifact.Collection
	// Agent is the template for the per-session runtimes. Its Provider is
	// replaced by Config.Provider.
	Agent agent.Config
}

// Controller is the main control loop. It subscribes to session events and
// runs one directive for every session whose latest event is a user message.
type Controller struct {
	sessions  store.SessionStore
	records   store.RecordStore
	provider  model.Provider
	compiler  *compiler.Compiler
	memory    compiler.MemorySource
	artifacts *artifact.Collection
	agentCfg  agent.Config

	mu       sync.Mutex
	runtimes map[string]*agent.Runtime
}

func New(cfg Config) *Controller {
	agentCfg := cfg.Agent
	agentCfg.Provider = cfg.Provider
	return &Controller{
		sessions:  cfg.Sessions,
		records:   cfg.Records,
		provider:  cfg.Provider,
		compiler:  cfg.Compiler,
		memory:    cfg.Memory,
		artifacts: cfg.Artifacts,
		agentCfg:  agentCfg,
		runtimes:  map[string]*agent.Runtime{},
	}
}

// Start listens for session events and triggers steps until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	events := c.sessions.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sessionID := <-events:
			if err := c.Step(ctx, sessionID); err != nil {
				slog.Error("Controller step error", "sessionID", sessionID, "error", err)
			}
		}
	}
}

// Runtime returns the agent runtime of a session, creating it on first use.
func (c *Controller) Runtime(sessionID string) *agent.Runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.runtimes[sessionID]
	if !ok {
		rt = agent.New(c.agentCfg)
		c.runtimes[sessionID] = rt
	}
	return rt
}

// Forget drops the runtime of a deleted session.
func (c *Controller) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.runtimes, sessionID)
	c.mu.Unlock()
}

// Compile builds the working context for message as the next turn of the
// session, without running the agent.
func (c *Controller) Compile(ctx context.Context, sessionID, message string) (compiler.Result, error) {
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return compiler.Result{}, fmt.Errorf("loading session: %w", err)
	}
	events, err := c.sessions.Events(ctx, sessionID, 0)
	if err != nil {
		return compiler.Result{}, fmt.Errorf("loading events: %w", err)
	}
	return c.compile(ctx, sess, events, message)
}

func (c *Controller) compile(ctx context.Context, sess *domain.Session, prior []domain.Event, message string) (compiler.Result, error) {
	facts, err := c.Facts(ctx, sess.ID)
	if err != nil {
		return compiler.Result{}, err
	}
	in := compiler.Input{
		Session: prior,
		Memory:  c.memory,
		Scope: domain.Scope{
			CurrentMessage: message,
			ActiveTools:    sess.ActiveTools,
			Mode:           sess.Mode,
			Facts:          facts,
			ActiveLayers:   sess.ActiveLayers,
		},
	}
	if c.artifacts != nil {
		in.Artifacts = c.artifacts.Session(sess.ID)
	}
	return c.compiler.Compile(ctx, in), nil
}

// Step runs one directive for the session if its latest event is a user
// message. Other states are a no-op.
func (c *Controller) Step(ctx context.Context, sessionID string) error {
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	events, err := c.sessions.Events(ctx, sessionID, 0)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	last := events[len(events)-1]
	if last.Kind != domain.EventUserMessage {
		return nil
	}

	res, err := c.compile(ctx, sess, events[:len(events)-1], last.Content)
	if err != nil {
		return err
	}

	modelName := sess.Model
	if modelName == "" {
		modelName = c.agentCfg.DefaultModel
	}

	out, err := c.Runtime(sessionID).Execute(ctx, agent.Directive{
		Text:         last.Content,
		History:      res.History,
		Instructions: res.SystemInstruction,
		ActiveLayers: sess.ActiveLayers,
		Model:        modelName,
	})
	if errors.Is(err, agent.ErrBusy) {
		slog.Warn("Session busy, skipping message", "sessionID", sessionID, "eventID", last.ID)
		return nil
	}
	if err != nil {
		if out != nil {
			if appendErr := c.appendToolEvents(ctx, sessionID, out); appendErr != nil {
				return appendErr
			}
		}
		if appendErr := c.sessions.Append(ctx, &domain.Event{
			SessionID: sessionID,
			Kind:      domain.EventError,
			Content:   err.Error(),
		}); appendErr != nil {
			return fmt.Errorf("appending error event: %w", appendErr)
		}
		return fmt.Errorf("executing directive: %w", err)
	}

	if err := c.appendOutcome(ctx, sessionID, modelName, out); err != nil {
		return err
	}
	return c.checkAndCompact(ctx, sess, modelName)
}

func (c *Controller) appendOutcome(ctx context.Context, sessionID, modelName string, out *agent.Outcome) error {
	if err := c.appendToolEvents(ctx, sessionID, out); err != nil {
		return err
	}
	if err := c.sessions.Append(ctx, &domain.Event{
		SessionID: sessionID,
		Kind:      domain.EventModelResponse,
		Content:   out.Text,
		Metadata:  map[string]string{domain.MetaModel: modelName},
	}); err != nil {
		return fmt.Errorf("appending response: %w", err)
	}
	return nil
}

// appendToolEvents records the honored tool call, its result and any dropped
// calls.
func (c *Controller) appendToolEvents(ctx context.Context, sessionID string, out *agent.Outcome) error {
	if out.ToolCall != nil {
		call, err := json.Marshal(out.ToolCall)
		if err != nil {
			return fmt.Errorf("encoding tool call: %w", err)
		}
		meta := map[string]string{domain.MetaToolCallID: out.ToolCall.ID}
		if err := c.sessions.Append(ctx, &domain.Event{
			SessionID: sessionID,
			Kind:      domain.EventToolCall,
			Content:   string(call),
			ToolName:  out.ToolCall.Name,
			Metadata:  meta,
		}); err != nil {
			return fmt.Errorf("appending tool call: %w", err)
		}

		result, err := json.Marshal(out.Result)
		if err != nil {
			return fmt.Errorf("encoding tool result: %w", err)
		}
		if err := c.sessions.Append(ctx, &domain.Event{
			SessionID: sessionID,
			Kind:      domain.EventToolResult,
			Content:   string(result),
			ToolName:  out.ToolCall.Name,
			Metadata:  meta,
		}); err != nil {
			return fmt.Errorf("appending tool result: %w", err)
		}
	}

	if len(out.Dropped) > 0 {
		if err := c.sessions.Append(ctx, &domain.Event{
			SessionID: sessionID,
			Kind:      domain.EventSystemNote,
			Content:   "Ignored additional tool calls: " + strings.Join(out.Dropped, ", "),
		}); err != nil {
			return fmt.Errorf("appending note: %w", err)
		}
	}
	return nil
}

// Facts returns the researched facts attached to a session, highest
// confidence first.
func (c *Controller) Facts(ctx context.Context, sessionID string) ([]domain.FactChunk, error) {
	recs, err := c.records.AllByIndex(ctx, store.CollectionFacts, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	facts := make([]domain.FactChunk, 0, len(recs))
	for _, r := range recs {
		var f domain.FactChunk
		if err := json.Unmarshal(r.Data, &f); err != nil {
			return nil, fmt.Errorf("decoding fact %s: %w", r.ID, err)
		}
		facts = append(facts, f)
	}
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].Confidence > facts[j].Confidence })
	return facts, nil
}

// AddFact attaches a researched fact to a session.
func (c *Controller) AddFact(ctx context.Context, sessionID string, f *domain.FactChunk) error {
	f.Fact = strings.TrimSpace(f.Fact)
	if f.Fact == "" || f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("%w: text required and confidence must be in [0,1]", ErrInvalidFact)
	}
	if f.ID == "" {
		f.ID = store.NewID()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding fact: %w", err)
	}
	return c.records.Put(ctx, &domain.Record{
		Collection: store.CollectionFacts,
		ID:         f.ID,
		Index:      sessionID,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	})
}

// RemoveFact deletes a fact by ID.
func (c *Controller) RemoveFact(ctx context.Context, id string) error {
	return c.records.Delete(ctx, store.CollectionFacts, id)
}

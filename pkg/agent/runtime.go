// Package agent implements the agent runtime: the state machine that takes a
// directive through model reasoning, at most one tool execution and a final
// synthesis.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/model"
	"github.com/nstogner/cortex/pkg/tools"
)

// ErrBusy is returned when a directive arrives while another is in flight.
var ErrBusy = errors.New("agent is busy with another directive")

// subscriberBuffer is the per-subscriber snapshot buffer.
const subscriberBuffer = 16

// ToolExecutor resolves and executes tools.
type ToolExecutor interface {
	Declarations(names []string) []domain.ToolSchema
	Execute(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error)
}

// LayerTools resolves the tools unlocked by active layers.
type LayerTools interface {
	Tools(ids []string) []string
}

// Config wires a Runtime.
type Config struct {
	Provider model.Provider
	Tools    ToolExecutor
	// Layers may be nil when no layer unlocks tools.
	Layers LayerTools
	// BaseTools are offered on every directive.
	BaseTools []string
	// DefaultModel is used when a directive names none.
	DefaultModel string
}

// Directive is one user request with its compiled working context.
type Directive struct {
	Text         string
	History      []domain.ContextEntry
	Instructions string
	ActiveLayers []string
	Model        string
}

// Outcome describes what a completed directive did.
type Outcome struct {
	// Text is the model's response, or its synthesis of the tool result.
	Text string
	// ToolCall is the honored tool call, if any.
	ToolCall *domain.ToolCall
	// Result is the tool result, if a tool ran.
	Result *domain.ToolResult
	// Dropped names tool calls beyond the first, which are never executed.
	Dropped []string
}

// Runtime runs one directive at a time and publishes its state transitions.
type Runtime struct {
	cfg Config

	mu    sync.Mutex
	busy  bool
	state domain.AgenticState
	subs  map[chan domain.AgenticState]struct{}
}

func New(cfg Config) *Runtime {
	return &Runtime{
		cfg:   cfg,
		state: domain.AgenticState{Status: domain.AgentIdle},
		subs:  map[chan domain.AgenticState]struct{}{},
	}
}

// State returns a snapshot of the current state.
func (r *Runtime) State() domain.AgenticState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Subscribe returns a channel receiving a snapshot on every transition and a
// func that ends the subscription. Snapshots are dropped for slow readers.
func (r *Runtime) Subscribe() (<-chan domain.AgenticState, func()) {
	ch := make(chan domain.AgenticState, subscriberBuffer)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// transition applies fn to the state and publishes a snapshot. Callers must
// not hold r.mu.
func (r *Runtime) transition(fn func(s *domain.AgenticState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
	snap := r.state.Clone()
	for ch := range r.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// OfferedTools returns the base tools plus those unlocked by the given layers.
func (r *Runtime) OfferedTools(activeLayers []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(r.cfg.BaseTools)
	if r.cfg.Layers != nil {
		add(r.cfg.Layers.Tools(activeLayers))
	}
	return out
}

// Execute runs a directive to completion. It fails fast with ErrBusy when
// another directive is in flight. When the tool ran but synthesis failed the
// partial Outcome (ToolCall and Result, no Text) is returned with the error.
func (r *Runtime) Execute(ctx context.Context, d Directive) (*Outcome, error) {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		recordDirective(outcomeBusy)
		return nil, ErrBusy
	}
	r.busy = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()
	}()

	r.transition(func(s *domain.AgenticState) {
		*s = domain.AgenticState{
			Status:     domain.AgentThinking,
			IsThinking: true,
			History:    []domain.AgentTurn{{Role: domain.RoleUser, Content: d.Text}},
		}
	})

	modelName := d.Model
	if modelName == "" {
		modelName = r.cfg.DefaultModel
	}
	offered := r.OfferedTools(d.ActiveLayers)
	req := model.Request{
		Model:        modelName,
		Instructions: d.Instructions,
		Messages:     append(model.FromContext(d.History), model.TextMessage(domain.RoleUser, d.Text)),
		Tools:        r.cfg.Tools.Declarations(offered),
	}

	slog.Info("Calling model", "model", modelName, "entries", len(d.History), "tools", len(req.Tools))
	msg, err := model.Generate(ctx, r.cfg.Provider, req)
	if err != nil {
		return nil, r.fail(fmt.Errorf("calling model: %w", err))
	}

	calls := msg.ToolCalls()
	if len(calls) == 0 {
		text := msg.Text()
		r.transition(func(s *domain.AgenticState) {
			s.Status = domain.AgentResponding
			s.IsThinking = false
		})
		r.transition(func(s *domain.AgenticState) {
			s.History = append(s.History, domain.AgentTurn{Role: domain.RoleModel, Content: text})
			s.Status = domain.AgentIdle
		})
		recordDirective(outcomeResponded)
		return &Outcome{Text: text}, nil
	}

	call := calls[0]
	var dropped []string
	for _, extra := range calls[1:] {
		dropped = append(dropped, extra.Name)
	}
	if len(dropped) > 0 {
		slog.Warn("Dropping extra tool calls", "honored", call.Name, "dropped", dropped)
	}

	note := "Negotiating capability: " + call.Name
	if len(dropped) > 0 {
		note += " (ignored: " + strings.Join(dropped, ", ") + ")"
	}
	r.transition(func(s *domain.AgenticState) {
		s.Status = domain.AgentNegotiatingTool
		s.IsThinking = false
		s.ActiveTool = call.Name
		s.History = append(s.History, domain.AgentTurn{Role: domain.RoleSystem, Content: note, ToolName: call.Name})
	})

	if !contains(offered, call.Name) {
		return nil, r.fail(fmt.Errorf("%w: %s", tools.ErrCapabilityNotFound, call.Name))
	}

	r.transition(func(s *domain.AgenticState) { s.Status = domain.AgentExecuting })
	slog.Info("Executing tool", "tool", call.Name, "callID", call.ID)
	result, err := r.cfg.Tools.Execute(ctx, call.Name, call.Input)
	if err != nil {
		return nil, r.fail(err)
	}
	recordToolExecution(call.Name, string(result.Status))

	r.transition(func(s *domain.AgenticState) {
		s.History = append(s.History, domain.AgentTurn{
			Role:     domain.RoleFunction,
			Content:  fmt.Sprintf("Executed %s: %s", call.Name, result.Status),
			ToolName: call.Name,
		})
		res := result
		s.LastResult = &res
		s.Status = domain.AgentSynthesizing
		s.IsThinking = true
	})

	req.Messages = append(req.Messages,
		callTurn(call, msg),
		model.Message{Role: domain.RoleFunction, Content: []model.Content{{
			Type:         model.ContentToolResult,
			ToolResponse: &model.ToolResponse{CallID: call.ID, Name: call.Name, Result: result},
		}}},
	)
	synth, err := model.Generate(ctx, r.cfg.Provider, req)
	if err != nil {
		partial := &Outcome{ToolCall: &call, Result: &result, Dropped: dropped}
		return partial, r.fail(fmt.Errorf("synthesizing %s result: %w", call.Name, err))
	}
	text := synth.Text()
	if text == "" {
		text = fmt.Sprintf("Executed %s: %s", call.Name, result.Status)
	}

	r.transition(func(s *domain.AgenticState) {
		s.History = append(s.History, domain.AgentTurn{Role: domain.RoleModel, Content: text})
		s.Status = domain.AgentIdle
		s.IsThinking = false
		s.ActiveTool = ""
	})
	recordDirective(outcomeSynthesized)
	return &Outcome{Text: text, ToolCall: &call, Result: &result, Dropped: dropped}, nil
}

// callTurn rebuilds the model turn that requested call, keeping any text and
// the call's thought signature but none of the dropped calls.
func callTurn(call domain.ToolCall, from model.Message) model.Message {
	out := model.Message{Role: domain.RoleModel}
	for _, c := range from.Content {
		switch {
		case c.Type == model.ContentText:
			out.Content = append(out.Content, c)
		case c.Type == model.ContentToolCall && c.ToolCall != nil && c.ToolCall.ID == call.ID:
			out.Content = append(out.Content, c)
		}
	}
	return out
}

func (r *Runtime) fail(err error) error {
	slog.Error("Directive failed", "error", err)
	r.transition(func(s *domain.AgenticState) {
		s.Status = domain.AgentError
		s.IsThinking = false
		s.ActiveTool = ""
		s.Error = err.Error()
	})
	recordDirective(outcomeError)
	return err
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/nstogner/cortex/pkg/appstate"
	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/memory"
	"github.com/nstogner/cortex/pkg/store/memstore"
)

func newBuiltinRegistry(t *testing.T) (*Registry, *appstate.State, *memory.Memory) {
	t.Helper()
	rs := memstore.New()
	state := appstate.New(rs)
	mem, err := memory.New(rs)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, Deps{State: state, Memory: mem}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return reg, state, mem
}

func TestNavigateDashboard(t *testing.T) {
	reg, state, _ := newBuiltinRegistry(t)
	ctx := context.Background()

	res, err := reg.Execute(ctx, SystemNavigate, map[string]any{"target": "DASHBOARD"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != domain.StatusSuccess || res.UIHint() != domain.HintNav {
		t.Fatalf("result = %+v, want SUCCESS/NAV", res)
	}
	if nav := res.Payload.(domain.NavPayload); nav.Target != "DASHBOARD" {
		t.Errorf("target = %q", nav.Target)
	}
	view, _ := state.CurrentView(ctx)
	if view != "DASHBOARD" {
		t.Errorf("CurrentView = %q", view)
	}

	res, _ = reg.Execute(ctx, SystemNavigate, map[string]any{"target": "MOON"})
	if res.Status != domain.StatusError {
		t.Errorf("unknown view status = %s, want ERROR", res.Status)
	}
}

func TestTaskTools(t *testing.T) {
	reg, state, _ := newBuiltinRegistry(t)
	ctx := context.Background()

	res, _ := reg.Execute(ctx, TaskCreate, map[string]any{"title": "Draft", "priority": "high"})
	if res.Status != domain.StatusSuccess || res.UIHint() != domain.HintMessage {
		t.Fatalf("task_create = %+v", res)
	}
	reg.Execute(ctx, TaskCreate, map[string]any{"title": "Review"})

	res, _ = reg.Execute(ctx, TaskList, nil)
	table := res.Payload.(domain.TablePayload)
	if len(table.Rows) != 2 || len(table.Columns) != 4 {
		t.Fatalf("task_list = %+v", table)
	}

	tasks, _ := state.Tasks(ctx, "")
	res, _ = reg.Execute(ctx, TaskComplete, map[string]any{"id": tasks[0].ID})
	if res.Status != domain.StatusSuccess {
		t.Fatalf("task_complete = %+v", res)
	}

	res, _ = reg.Execute(ctx, TaskList, map[string]any{"status": "open"})
	if rows := res.Payload.(domain.TablePayload).Rows; len(rows) != 1 {
		t.Errorf("open tasks = %d, want 1", len(rows))
	}

	res, _ = reg.Execute(ctx, TaskStats, nil)
	stat := res.Payload.(domain.StatPayload)
	if res.UIHint() != domain.HintStat || stat.Value != 50 || stat.Unit != "%" {
		t.Errorf("task_stats = %+v", res)
	}

	res, _ = reg.Execute(ctx, TaskChart, nil)
	chart := res.Payload.(domain.ChartPayload)
	if res.UIHint() != domain.HintChart || len(chart.Series) != 3 {
		t.Fatalf("task_chart = %+v", res)
	}
	var open float64
	for _, p := range chart.Series {
		open += p.Value
	}
	if open != 1 {
		t.Errorf("charted open tasks = %v, want 1", open)
	}

	res, _ = reg.Execute(ctx, TaskComplete, map[string]any{"id": 42})
	if res.Status != domain.StatusError || !strings.Contains(res.Error, "string") {
		t.Errorf("bad id type = %+v", res)
	}
}

func TestWorkflowGenerate(t *testing.T) {
	reg, _, _ := newBuiltinRegistry(t)
	res, _ := reg.Execute(context.Background(), WorkflowGenerate, map[string]any{
		"goal":  "Release",
		"steps": []any{"Freeze", "Tag", "Announce"},
	})
	if res.Status != domain.StatusSuccess || res.UIHint() != domain.HintTable {
		t.Fatalf("workflow_generate = %+v", res)
	}
	rows := res.Payload.(domain.TablePayload).Rows
	if len(rows) != 3 || rows[2][0] != "3" || rows[2][1] != "Announce" {
		t.Errorf("rows = %v", rows)
	}
}

func TestMemoryTools(t *testing.T) {
	reg, _, mem := newBuiltinRegistry(t)
	ctx := context.Background()

	res, _ := reg.Execute(ctx, MemoryStore, map[string]any{
		"key": "qubic", "text": "Qubic uses proof of useful work", "tags": []any{"crypto"},
	})
	if res.Status != domain.StatusSuccess {
		t.Fatalf("memory_store = %+v", res)
	}
	rec, err := mem.Get(ctx, "qubic")
	if err != nil || len(rec.Tags) != 1 || rec.Tags[0] != "crypto" {
		t.Errorf("stored record = %+v, %v", rec, err)
	}

	res, _ = reg.Execute(ctx, MemoryRecall, map[string]any{"query": "qubic"})
	rows := res.Payload.(domain.TablePayload).Rows
	if len(rows) != 1 || !strings.Contains(rows[0][1], "[ARTIFACT: qubic]") {
		t.Errorf("memory_recall rows = %v", rows)
	}

	res, _ = reg.Execute(ctx, MemoryStore, map[string]any{"key": "qubic", "text": "again"})
	if res.Status != domain.StatusError {
		t.Errorf("duplicate memory_store status = %s, want ERROR", res.Status)
	}
}

func TestBuiltinsWithoutMemory(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, Deps{State: appstate.New(memstore.New())}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if _, err := reg.Schema(MemoryStore); err == nil {
		t.Error("memory_store registered without a memory vault")
	}
	if reg.Count() != 7 {
		t.Errorf("Count = %d, want 7", reg.Count())
	}
}

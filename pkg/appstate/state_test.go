package appstate

import (
	"context"
	"errors"
	"testing"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
	"github.com/nstogner/cortex/pkg/store/memstore"
)

func TestNavigate(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	view, _ := s.CurrentView(ctx)
	if view != "DASHBOARD" {
		t.Errorf("default view = %q, want DASHBOARD", view)
	}
	got, err := s.Navigate(ctx, "tasks")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got != "TASKS" {
		t.Errorf("Navigate = %q, want TASKS", got)
	}
	view, _ = s.CurrentView(ctx)
	if view != "TASKS" {
		t.Errorf("CurrentView = %q, want TASKS", view)
	}
	if _, err := s.Navigate(ctx, "nowhere"); !errors.Is(err, ErrUnknownView) {
		t.Errorf("Navigate unknown: err = %v, want ErrUnknownView", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	a, err := s.CreateTask(ctx, "Write report", "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if a.Priority != DefaultPriority || a.Status != domain.TaskOpen {
		t.Errorf("task defaults = %+v", a)
	}
	s.CreateTask(ctx, "Ship it", "HIGH")

	if _, err := s.CreateTask(ctx, "x", "urgent"); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("bad priority: err = %v", err)
	}
	if _, err := s.CreateTask(ctx, "  ", ""); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title: err = %v", err)
	}

	if _, err := s.CompleteTask(ctx, a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	open, _ := s.Tasks(ctx, domain.TaskOpen)
	done, _ := s.Tasks(ctx, domain.TaskDone)
	all, _ := s.Tasks(ctx, "")
	if len(open) != 1 || len(done) != 1 || len(all) != 2 {
		t.Errorf("open=%d done=%d all=%d, want 1 1 2", len(open), len(done), len(all))
	}
	if open[0].Priority != "high" {
		t.Errorf("open priority = %q, want high", open[0].Priority)
	}

	st, _ := s.Stats(ctx)
	if st.Total != 2 || st.Done != 1 || st.Open != 1 || st.ByPriority["high"] != 1 {
		t.Errorf("Stats = %+v", st)
	}
	if st.Completion() != 50 {
		t.Errorf("Completion = %v, want 50", st.Completion())
	}

	if _, err := s.CompleteTask(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CompleteTask missing: err = %v, want ErrNotFound", err)
	}
}

func TestWorkflows(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "Launch", []string{"Plan", " ", "Build", "Ship"})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if len(wf.Steps) != 3 {
		t.Errorf("Steps = %v, want 3 non-empty", wf.Steps)
	}
	if _, err := s.CreateWorkflow(ctx, "Empty", nil); !errors.Is(err, ErrEmptyWorkflow) {
		t.Errorf("empty workflow: err = %v", err)
	}
	wfs, _ := s.Workflows(ctx)
	if len(wfs) != 1 || wfs[0].Goal != "Launch" {
		t.Errorf("Workflows = %+v", wfs)
	}
}

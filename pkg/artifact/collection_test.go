package artifact

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
	"github.com/nstogner/cortex/pkg/store/memstore"
)

type mapSchemas map[string]domain.ToolSchema

func (m mapSchemas) Schema(name string) (domain.ToolSchema, error) {
	s, ok := m[name]
	if !ok {
		return domain.ToolSchema{}, fmt.Errorf("no such tool: %s", name)
	}
	return s, nil
}

func TestAttachDetach(t *testing.T) {
	c := NewCollection(memstore.New(), nil)
	ctx := context.Background()

	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	a := &domain.Artifact{SessionID: "s-1", Name: "notes.md", Data: []byte("# hi"), CreatedAt: t0}
	if err := c.Attach(ctx, a); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if a.ID == "" || a.MimeType != "text/plain" {
		t.Errorf("Attach did not fill defaults: %+v", a)
	}
	c.Attach(ctx, &domain.Artifact{SessionID: "s-1", Name: "b.csv", MimeType: "text/csv", CreatedAt: t0.Add(time.Second)})
	c.Attach(ctx, &domain.Artifact{SessionID: "s-2", Name: "other.txt"})

	active, err := c.Active(ctx, "s-1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 2 || active[0].Name != "notes.md" || string(active[0].Data) != "# hi" {
		t.Fatalf("Active = %+v", active)
	}

	// Detaching through the wrong session is refused.
	if err := c.Detach(ctx, "s-2", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Detach wrong session: err = %v, want ErrNotFound", err)
	}
	if err := c.Detach(ctx, "s-1", a.ID); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	active, _ = c.Active(ctx, "s-1")
	if len(active) != 1 {
		t.Errorf("Active after detach len = %d, want 1", len(active))
	}

	if err := c.Attach(ctx, &domain.Artifact{Name: "x"}); !errors.Is(err, ErrInvalidArtifact) {
		t.Errorf("Attach without session: err = %v", err)
	}
}

func TestViewDefaults(t *testing.T) {
	ctx := context.Background()
	c := NewCollection(memstore.New(), mapSchemas{
		"task_list": {Name: "task_list", Description: "List tasks"},
	})

	v := c.Session("empty")
	arts, err := v.ActiveArtifacts(ctx)
	if err != nil || len(arts) != 0 {
		t.Errorf("ActiveArtifacts = %v, %v; want empty", arts, err)
	}

	if s := v.Schema("task_list"); s.Name != "task_list" {
		t.Errorf("Schema(task_list) = %+v", s)
	}
	if s := v.Schema("missing"); !s.IsZero() {
		t.Errorf("Schema(missing) = %+v, want zero", s)
	}

	var nilView *View
	if s := nilView.Schema("task_list"); !s.IsZero() {
		t.Errorf("nil view Schema = %+v, want zero", s)
	}
}

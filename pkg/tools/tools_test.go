package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nstogner/cortex/pkg/domain"
)

func echoTool(name string, required ...string) Tool {
	return Tool{
		Schema: domain.ToolSchema{
			Name:       name,
			Parameters: &domain.Schema{Type: domain.TypeObject, Required: required},
		},
		Handler: func(_ context.Context, args map[string]any) (domain.ToolResult, error) {
			return domain.ToolResult{Payload: domain.MessagePayload{Text: "ok"}}, nil
		},
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoTool("a")); !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("duplicate: err = %v, want ErrToolAlreadyRegistered", err)
	}
	if err := r.Register(Tool{Schema: domain.ToolSchema{Name: "b"}}); !errors.Is(err, ErrInvalidTool) {
		t.Errorf("nil handler: err = %v, want ErrInvalidTool", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister duplicate did not panic")
		}
	}()
	r.MustRegister(echoTool("a"))
}

func TestSchemaAndDeclarations(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("b"))
	r.MustRegister(echoTool("a"))

	if _, err := r.Schema("missing"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Schema missing: err = %v, want ErrToolNotFound", err)
	}
	decls := r.Declarations([]string{"b", "missing", "a", "b"})
	if len(decls) != 2 || decls[0].Name != "b" || decls[1].Name != "a" {
		t.Errorf("Declarations = %+v, want [b a]", decls)
	}
	if got := strings.Join(r.Names(), ","); got != "a,b" {
		t.Errorf("Names = %s", got)
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", "msg"))
	r.MustRegister(Tool{
		Schema: domain.ToolSchema{Name: "fail"},
		Handler: func(context.Context, map[string]any) (domain.ToolResult, error) {
			return domain.ToolResult{}, errors.New("disk full")
		},
	})
	r.MustRegister(Tool{
		Schema: domain.ToolSchema{Name: "boom"},
		Handler: func(context.Context, map[string]any) (domain.ToolResult, error) {
			panic("boom")
		},
	})
	ctx := context.Background()

	res, err := r.Execute(ctx, "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ToolName != "echo" || res.Status != domain.StatusSuccess || res.UIHint() != domain.HintMessage {
		t.Errorf("result = %+v", res)
	}

	res, err = r.Execute(ctx, "echo", nil)
	if err != nil {
		t.Fatalf("Execute missing arg returned error: %v", err)
	}
	if res.Status != domain.StatusError || !strings.Contains(res.Error, "msg") {
		t.Errorf("missing arg result = %+v", res)
	}

	res, err = r.Execute(ctx, "fail", nil)
	if err != nil || res.Status != domain.StatusError || res.Error != "disk full" || res.ToolName != "fail" {
		t.Errorf("handler error: res = %+v, err = %v", res, err)
	}

	res, err = r.Execute(ctx, "boom", nil)
	if err != nil || res.Status != domain.StatusError {
		t.Errorf("panic: res = %+v, err = %v", res, err)
	}

	_, err = r.Execute(ctx, "nope", nil)
	if !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("unknown tool: err = %v, want ErrCapabilityNotFound", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("unknown tool error %q does not name the tool", err)
	}
}

package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/model"
)

func TestToContentsRoles(t *testing.T) {
	call := &domain.ToolCall{ID: "c1", Name: "system_navigate", Input: map[string]any{"target": "DASHBOARD"}}
	msgs := []model.Message{
		model.TextMessage(domain.RoleSystem, "VERIFIED FACTS:"),
		model.TextMessage(domain.RoleUser, "go to the dashboard"),
		{Role: domain.RoleModel, Content: []model.Content{{Type: model.ContentToolCall, ToolCall: call}}},
		{Role: domain.RoleFunction, Content: []model.Content{{
			Type: model.ContentToolResult,
			ToolResponse: &model.ToolResponse{
				CallID: "c1",
				Result: domain.Success("system_navigate", domain.NavPayload{Target: "DASHBOARD"}),
			},
		}}},
		model.TextMessage(domain.RoleModel, "Done."),
	}

	contents, err := toContents(msgs)
	if err != nil {
		t.Fatalf("toContents: %v", err)
	}
	// system+user merge, model call, user response, model text.
	if len(contents) != 4 {
		t.Fatalf("contents len = %d, want 4", len(contents))
	}
	wantRoles := []string{"user", "model", "user", "model"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if len(contents[0].Parts) != 2 {
		t.Errorf("merged user parts = %d, want 2", len(contents[0].Parts))
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "system_navigate" || fr.ID != "c1" {
		t.Fatalf("function response = %+v", fr)
	}
	out, ok := fr.Response["output"].(map[string]any)
	if !ok || out["uiHint"] != "NAV" {
		t.Errorf("response = %v", fr.Response)
	}
}

func TestErrorToolResponse(t *testing.T) {
	msgs := []model.Message{{Role: domain.RoleFunction, Content: []model.Content{{
		Type: model.ContentToolResult,
		ToolResponse: &model.ToolResponse{
			CallID: "c9",
			Name:   "task_complete",
			Result: domain.ToolResult{ToolName: "task_complete", Status: domain.StatusError, Error: "task x: not found"},
		},
	}}}}
	contents, err := toContents(msgs)
	if err != nil {
		t.Fatalf("toContents: %v", err)
	}
	fr := contents[0].Parts[0].FunctionResponse
	if fr.Response["error"] != "task x: not found" {
		t.Errorf("response = %v", fr.Response)
	}
}

func TestToolDeclarations(t *testing.T) {
	if toolDeclarations(nil) != nil {
		t.Error("no schemas should produce no tools")
	}
	tools := toolDeclarations([]domain.ToolSchema{{
		Name:        "workflow_generate",
		Description: "plan",
		Parameters: &domain.Schema{
			Type: domain.TypeObject,
			Properties: map[string]*domain.Schema{
				"goal":  {Type: domain.TypeString},
				"steps": {Type: domain.TypeArray, Items: &domain.Schema{Type: domain.TypeString}},
			},
			Required: []string{"goal", "steps"},
		},
	}})
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("tools = %+v", tools)
	}
	params := tools[0].FunctionDeclarations[0].Parameters
	if params.Type != genai.TypeObject || len(params.Required) != 2 {
		t.Errorf("params = %+v", params)
	}
	steps := params.Properties["steps"]
	if steps.Type != genai.TypeArray || steps.Items == nil || steps.Items.Type != genai.TypeString {
		t.Errorf("steps schema = %+v", steps)
	}
}

func TestToolCallContentFillsID(t *testing.T) {
	c := toolCallContent(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "task_stats"}})
	if c.ToolCall.ID == "" || c.ToolCall.Input == nil {
		t.Errorf("tool call = %+v", c.ToolCall)
	}
}

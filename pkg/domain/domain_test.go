package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestToolResultWireFormat(t *testing.T) {
	b, err := json.Marshal(Success("system_navigate", NavPayload{Target: "DASHBOARD"}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"toolName":"system_navigate","status":"SUCCESS","uiHint":"NAV","data":{"target":"DASHBOARD"}}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}

	var got ToolResult
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if nav, ok := got.Payload.(NavPayload); !ok || nav.Target != "DASHBOARD" {
		t.Errorf("payload = %#v", got.Payload)
	}
}

func TestToolResultFailureHasNoPayload(t *testing.T) {
	b, _ := json.Marshal(Failure("task_complete", errors.New("task t-1: not found")))
	if strings.Contains(string(b), "uiHint") || strings.Contains(string(b), "data") {
		t.Errorf("failure json = %s", b)
	}
	var got ToolResult
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Status != StatusError || got.Payload != nil || got.UIHint() != "" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestToolResultUnknownHint(t *testing.T) {
	var got ToolResult
	err := json.Unmarshal([]byte(`{"toolName":"x","status":"SUCCESS","uiHint":"HOLOGRAM","data":{}}`), &got)
	if err == nil {
		t.Fatal("expected error for unknown hint")
	}
}

func TestEventKindRole(t *testing.T) {
	cases := map[EventKind]Role{
		EventUserMessage:   RoleUser,
		EventModelResponse: RoleModel,
		EventToolCall:      RoleFunction,
		EventToolResult:    RoleFunction,
		EventSystemNote:    RoleUser,
		EventError:         RoleUser,
	}
	for k, want := range cases {
		if got := k.Role(); got != want {
			t.Errorf("%s.Role() = %s, want %s", k, got, want)
		}
	}
	if EventKind("bogus").Valid() {
		t.Error("bogus kind reported valid")
	}
}

func TestAgenticStateClone(t *testing.T) {
	res := Success("task_stats", StatPayload{Label: "open", Value: 2})
	s := AgenticState{
		Status:     AgentIdle,
		LastResult: &res,
		History:    []AgentTurn{{Role: RoleUser, Content: "hi"}},
	}
	c := s.Clone()
	c.History[0].Content = "changed"
	c.LastResult.ToolName = "other"
	if s.History[0].Content != "hi" || s.LastResult.ToolName != "task_stats" {
		t.Errorf("clone aliases original: %+v", s)
	}
	if !AgentError.Terminal() || AgentExecuting.Terminal() {
		t.Error("Terminal misreports")
	}
}

package model

import (
	"testing"

	"github.com/nstogner/cortex/pkg/domain"
)

func TestMessageAccessors(t *testing.T) {
	m := Message{
		Role: domain.RoleModel,
		Content: []Content{
			{Type: ContentText, Text: "Let me "},
			{Type: ContentToolCall, ToolCall: &domain.ToolCall{ID: "c1", Name: "task_list"}},
			{Type: ContentText, Text: "check."},
			{Type: ContentToolCall, ToolCall: &domain.ToolCall{ID: "c2", Name: "task_stats"}},
		},
	}
	if got := m.Text(); got != "Let me check." {
		t.Errorf("Text = %q", got)
	}
	calls := m.ToolCalls()
	if len(calls) != 2 || calls[0].Name != "task_list" || calls[1].Name != "task_stats" {
		t.Errorf("ToolCalls = %+v", calls)
	}
}

func TestFromContext(t *testing.T) {
	msgs := FromContext([]domain.ContextEntry{
		{Role: domain.RoleSystem, Content: "VERIFIED FACTS:"},
		{Role: domain.RoleUser, Content: "hi"},
	})
	if len(msgs) != 2 || msgs[0].Role != domain.RoleSystem || msgs[1].Text() != "hi" {
		t.Errorf("FromContext = %+v", msgs)
	}
}

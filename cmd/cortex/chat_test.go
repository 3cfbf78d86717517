package main

import (
	"strings"
	"testing"
)

func TestChatRender(t *testing.T) {
	plain := &chat{}
	if got := plain.render("**bold**"); got != "**bold**" {
		t.Errorf("render without renderer = %q", got)
	}

	r := newRenderer(80)
	if r == nil {
		t.Fatal("newRenderer returned nil")
	}
	c := &chat{renderer: r}
	got := c.render("**bold**")
	if !strings.Contains(got, "bold") || strings.Contains(got, "**") {
		t.Errorf("render = %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Errorf("render kept trailing newline: %q", got)
	}
}

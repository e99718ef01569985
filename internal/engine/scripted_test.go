package engine

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func userMessage(text string) anthropic.MessageParam {
	return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
}

func TestScriptedMatchOrder(t *testing.T) {
	eng := NewScripted().
		OnContains("beach", Text("first")).
		OnContains("lekki beach", Text("second"))

	resp, err := eng.Complete(context.Background(), Request{
		Messages: []anthropic.MessageParam{userMessage("Tell me about Lekki Beach")},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Text != "first" {
		t.Errorf("Text = %q, want first registered rule to win", resp.Text)
	}
}

func TestScriptedFallback(t *testing.T) {
	eng := NewScripted()

	resp, err := eng.Complete(context.Background(), Request{
		Messages: []anthropic.MessageParam{userMessage("anything")},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if !resp.EndTurn || resp.Text == "" {
		t.Errorf("fallback response = %+v, want non-empty end-turn text", resp)
	}
	if eng.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", eng.Calls())
	}
}

func TestScriptedToolCycle(t *testing.T) {
	eng := NewScripted().On(
		func(req Request) bool { return !HasToolResult(req) },
		func(Request) *Response { return UseTool("t1", "getLocalTips", `{"category":"food"}`) },
	).SetFallback(func(Request) *Response {
		return Text("Here are the tips.")
	})

	ctx := context.Background()
	first, err := eng.Complete(ctx, Request{
		Messages: []anthropic.MessageParam{userMessage("food tips?")},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if len(first.ToolUses) != 1 || first.ToolUses[0].Name != "getLocalTips" {
		t.Fatalf("first response tool uses = %+v", first.ToolUses)
	}
	if first.EndTurn {
		t.Error("tool-use response should not end the turn")
	}

	second, err := eng.Complete(ctx, Request{
		Messages: []anthropic.MessageParam{
			userMessage("food tips?"),
			anthropic.NewAssistantMessage(anthropic.NewToolUseBlock("t1", first.ToolUses[0].Input, "getLocalTips")),
			anthropic.NewUserMessage(anthropic.NewToolResultBlock("t1", `{"tips":[]}`, false)),
		},
	})
	if err != nil {
		t.Fatalf("second Complete() error: %v", err)
	}
	if !second.EndTurn || second.Text != "Here are the tips." {
		t.Errorf("second response = %+v, want scripted end turn", second)
	}
}

func TestScriptedHonorsContextCancellation(t *testing.T) {
	eng := NewScripted()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Complete(ctx, Request{}); err == nil {
		t.Error("Complete() with canceled context did not error")
	}
}

func TestLastUserTextSkipsToolResults(t *testing.T) {
	req := Request{
		Messages: []anthropic.MessageParam{
			userMessage("real question"),
			anthropic.NewAssistantMessage(anthropic.NewToolUseBlock("t1", nil, "assessSafety")),
			anthropic.NewUserMessage(anthropic.NewToolResultBlock("t1", `{}`, false)),
		},
	}
	if got := LastUserText(req); got != "real question" {
		t.Errorf("LastUserText() = %q, want the text message", got)
	}
	if !HasToolResult(req) {
		t.Error("HasToolResult() = false, want true")
	}
}

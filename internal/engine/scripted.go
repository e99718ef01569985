package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Rule pairs a request matcher with a canned response. Rules are
// evaluated in registration order; the first match wins.
type Rule struct {
	Match   func(req Request) bool
	Respond func(req Request) *Response
}

// Scripted is a deterministic Engine for tests and offline evaluation.
// It never touches the network.
type Scripted struct {
	mu       sync.Mutex
	rules    []Rule
	fallback func(req Request) *Response
	calls    int
}

var _ Engine = (*Scripted)(nil)

// NewScripted creates a scripted engine whose fallback echoes a fixed
// acknowledgement.
func NewScripted() *Scripted {
	return &Scripted{
		fallback: func(Request) *Response {
			return Text("Understood.")
		},
	}
}

// On registers a rule.
func (s *Scripted) On(match func(Request) bool, respond func(Request) *Response) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, Rule{Match: match, Respond: respond})
	return s
}

// OnContains registers a rule that fires when the latest user text
// contains substr (case-insensitive).
func (s *Scripted) OnContains(substr string, resp *Response) *Scripted {
	lower := strings.ToLower(substr)
	return s.On(
		func(req Request) bool {
			return strings.Contains(strings.ToLower(LastUserText(req)), lower)
		},
		func(Request) *Response { return resp },
	)
}

// SetFallback replaces the default response for unmatched requests.
func (s *Scripted) SetFallback(fn func(Request) *Response) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = fn
	return s
}

// Calls returns how many Complete calls were made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Complete finds the first matching rule and returns its response.
func (s *Scripted) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls++
	rules := s.rules
	fallback := s.fallback
	s.mu.Unlock()

	for _, rule := range rules {
		if rule.Match(req) {
			return rule.Respond(req), nil
		}
	}
	return fallback(req), nil
}

// Text builds a plain end-turn response.
func Text(text string) *Response {
	return &Response{Text: text, EndTurn: true}
}

// UseTool builds a response requesting a single tool invocation.
func UseTool(id, name, input string) *Response {
	return &Response{
		ToolUses: []ToolUse{{ID: id, Name: name, Input: json.RawMessage(input)}},
	}
}

// LastUserText returns the text of the most recent user message that
// carries text content.
func LastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role != anthropic.MessageParamRoleUser {
			continue
		}
		var text string
		for _, block := range m.Content {
			if block.OfText != nil {
				text += block.OfText.Text
			}
		}
		if text != "" {
			return text
		}
	}
	return ""
}

// HasToolResult reports whether the latest message carries tool
// results, meaning the conversation is mid tool cycle.
func HasToolResult(req Request) bool {
	if len(req.Messages) == 0 {
		return false
	}
	last := req.Messages[len(req.Messages)-1]
	for _, block := range last.Content {
		if block.OfToolResult != nil {
			return true
		}
	}
	return false
}

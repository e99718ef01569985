// Package engine provides the reasoning backend: a thin interface over
// the Anthropic Messages API, plus a deterministic scripted engine for
// tests and offline evaluation runs.
package engine

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// Request is one reasoning call. Messages carry the conversation so
// far; Tools, if non-empty, lets the model request tool invocations.
type Request struct {
	// System is the system prompt.
	System string
	// Messages is the conversation so far, oldest first.
	Messages []anthropic.MessageParam
	// Tools are the tool schemas offered for this call.
	Tools []anthropic.ToolUnionParam
	// MaxTokens caps the response length. Zero uses the default.
	MaxTokens int64
	// Temperature overrides sampling temperature when non-nil.
	Temperature *float64
}

// ToolUse is one tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Response is the model's reply to one Request.
type Response struct {
	// Text is the concatenated text content.
	Text string
	// ToolUses are the tool invocations requested, in order.
	ToolUses []ToolUse
	// EndTurn is true when the model finished without requesting tools.
	EndTurn bool
	// TokensIn and TokensOut are the usage for this call.
	TokensIn  int64
	TokensOut int64
}

// Engine is the reasoning backend contract. Implementations must be
// safe for concurrent use.
type Engine interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

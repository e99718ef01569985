package orchestrator

import (
	"time"

	"github.com/dettyhq/detty/pkg/models"
)

// EventType represents the kind of turn event.
type EventType string

const (
	// EventTurnStarted indicates a user message was accepted.
	EventTurnStarted EventType = "turn_started"
	// EventRouted indicates the routing plan was produced.
	EventRouted EventType = "routed"
	// EventDelegationStarted indicates a sub-task was handed off.
	EventDelegationStarted EventType = "delegation_started"
	// EventDelegationCompleted indicates a handler returned.
	EventDelegationCompleted EventType = "delegation_completed"
	// EventToolInvoked indicates a direct tool call finished.
	EventToolInvoked EventType = "tool_invoked"
	// EventConsolidated indicates partial results were merged.
	EventConsolidated EventType = "consolidated"
	// EventTurnCompleted indicates the reply was persisted.
	EventTurnCompleted EventType = "turn_completed"
	// EventTurnFailed indicates the turn aborted before replying.
	EventTurnFailed EventType = "turn_failed"
)

// Event is emitted at each stage transition. Events drive the TUI and
// progress reporting.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TurnID identifies the turn.
	TurnID string
	// UserID identifies the user.
	UserID string
	// Role is the delegate role for delegation events.
	Role models.HandlerRole
	// Tool is the tool name for tool events.
	Tool string
	// Message provides additional context.
	Message string
	// Error contains details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

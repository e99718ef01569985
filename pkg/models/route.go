package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HandlerRole identifies one of the three delegate handler roles.
type HandlerRole string

const (
	// RoleAdvisory recommends attractions, food, and experiences.
	RoleAdvisory HandlerRole = "advisory"
	// RoleSafety assesses location safety and gives security guidance.
	RoleSafety HandlerRole = "safety"
	// RoleBooking finds lodging and schedules reminders.
	RoleBooking HandlerRole = "booking"
)

// HandlerRoles lists every delegate role.
var HandlerRoles = []HandlerRole{RoleAdvisory, RoleSafety, RoleBooking}

// Valid returns true if the role is a known value.
func (r HandlerRole) Valid() bool {
	switch r {
	case RoleAdvisory, RoleSafety, RoleBooking:
		return true
	default:
		return false
	}
}

// RouteKind discriminates the routing decision variants.
type RouteKind string

const (
	// RouteDirect answers the user without tools or delegation.
	RouteDirect RouteKind = "direct"
	// RouteToolCall invokes a registry tool from the orchestrator.
	RouteToolCall RouteKind = "tool_call"
	// RouteDelegate hands a sub-task to a delegate handler.
	RouteDelegate RouteKind = "delegate"
)

// Route is one tagged routing decision. Exactly one payload group is
// set, according to Kind.
type Route struct {
	Kind RouteKind `json:"kind"`

	// Text is the direct answer (RouteDirect).
	Text string `json:"text,omitempty"`

	// Tool and Args describe a tool invocation (RouteToolCall).
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// Role and SubTask describe a delegation (RouteDelegate).
	Role    HandlerRole `json:"role,omitempty"`
	SubTask string      `json:"sub_task,omitempty"`

	// DependsOn lists indices of earlier plan steps whose results this
	// step needs. Independent steps may run concurrently.
	DependsOn []int `json:"depends_on,omitempty"`
}

// Plan is the full routing output for one turn: an ordered list of
// steps plus any preference updates the router extracted from the
// message.
type Plan struct {
	Steps       []Route            `json:"steps"`
	Preferences map[PrefKey]string `json:"preferences,omitempty"`
}

// Validate checks structural soundness: known kinds, role values, and
// dependency indices that reference earlier steps only (no cycles by
// construction).
func (p *Plan) Validate() error {
	for i, step := range p.Steps {
		switch step.Kind {
		case RouteDirect, RouteToolCall, RouteDelegate:
		default:
			return &PlanError{Step: i, Reason: "unknown route kind " + string(step.Kind)}
		}
		if step.Kind == RouteDelegate && !step.Role.Valid() {
			return &PlanError{Step: i, Reason: "unknown handler role " + string(step.Role)}
		}
		if step.Kind == RouteToolCall && step.Tool == "" {
			return &PlanError{Step: i, Reason: "tool call without a tool name"}
		}
		for _, dep := range step.DependsOn {
			if dep < 0 || dep >= i {
				return &PlanError{Step: i, Reason: "dependency index out of range"}
			}
		}
	}
	return nil
}

// PlanError reports a structurally invalid routing plan.
type PlanError struct {
	Step   int
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("invalid plan step %d: %s", e.Step, e.Reason)
}

// DelegationRecord captures one delegation within a turn. It exists
// only for the duration of the turn and is never persisted.
type DelegationRecord struct {
	// TargetHandler is the role the sub-task was routed to.
	TargetHandler HandlerRole `json:"target_handler"`
	// SubTask is the natural-language instruction for the handler.
	SubTask string `json:"sub_task"`
	// Response is the handler's text or structured partial result.
	Response string `json:"response"`
	// SafetyScore is the numeric score, if the handler reported one.
	SafetyScore *int `json:"safety_score,omitempty"`
	// Truncated is set when the handler hit its round-trip bound.
	Truncated bool `json:"truncated,omitempty"`
}

// ToolInvocation is the transient record of one tool call.
type ToolInvocation struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    json.RawMessage `json:"result,omitempty"`
	Err       string          `json:"error,omitempty"`
	Latency   time.Duration   `json:"latency"`
	Timestamp time.Time       `json:"timestamp"`
}

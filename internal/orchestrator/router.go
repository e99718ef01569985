package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/handler"
	"github.com/dettyhq/detty/pkg/models"
)

const routingSystem = `You are the routing layer of a Lagos Detty-December travel assistant.
Read the visitor's message plus their context and output ONLY a JSON object, no prose:

{
  "steps": [
    {"kind": "direct", "text": "..."},
    {"kind": "tool_call", "tool": "...", "args": {...}},
    {"kind": "delegate", "role": "advisory|safety|booking", "sub_task": "...", "depends_on": [0]}
  ],
  "preferences": {"budget": "...", "interests": "...", "duration": "...", "dietary_restrictions": "...", "mobility_concerns": "..."}
}

Rules:
- "direct" answers greetings, small talk, and questions about the assistant itself.
- "tool_call" suits a single factual lookup that needs no judgement.
- "delegate" hands reasoning work to a specialist: advisory for recommendations,
  safety for risk questions, booking for reservations and reminders.
- A message touching several concerns gets several steps. Steps run concurrently
  unless "depends_on" lists the indices of earlier steps they need.
- Only include "preferences" keys the message itself states or changes.
- Any mention of an area's safety, or plans involving night movement, must add a
  safety step even if the visitor did not ask.`

// routerTemp keeps routing output near-deterministic.
const routerTemp = 0.2

// Router turns a user message into a validated routing plan.
type Router struct {
	eng    engine.Engine
	logger *DebugLogger
}

// NewRouter creates a router over the given engine.
func NewRouter(eng engine.Engine, logger *DebugLogger) *Router {
	if logger == nil {
		logger = NopLogger()
	}
	return &Router{eng: eng, logger: logger}
}

// Route produces a plan for one message. A malformed plan gets one
// corrective retry; if that also fails, the whole message is delegated
// to the advisory handler so the turn still progresses.
func (r *Router) Route(ctx context.Context, message string, snap handler.Snapshot) (*models.Plan, error) {
	prompt := snap.Render()
	if prompt != "" {
		prompt += "\n\n"
	}
	prompt += "Message: " + message

	plan, err := r.routeOnce(ctx, routingSystem, prompt)
	if err == nil {
		return plan, nil
	}
	r.logger.Log("routing parse failed, retrying: %v", err)

	corrective := routingSystem + "\n\nYour previous output was not a valid plan: " +
		err.Error() + ". Respond with only the JSON object."
	plan, retryErr := r.routeOnce(ctx, corrective, prompt)
	if retryErr == nil {
		return plan, nil
	}
	r.logger.Log("routing retry failed, falling back to advisory: %v", retryErr)

	return &models.Plan{Steps: []models.Route{
		{Kind: models.RouteDelegate, Role: models.RoleAdvisory, SubTask: message},
	}}, nil
}

func (r *Router) routeOnce(ctx context.Context, system, prompt string) (*models.Plan, error) {
	temp := routerTemp
	resp, err := r.eng.Complete(ctx, engine.Request{
		System: system,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("routing call: %w", err)
	}
	return ParsePlan(resp.Text)
}

// ParsePlan extracts and validates the JSON plan from model output,
// tolerating surrounding prose and code fences.
func ParsePlan(text string) (*models.Plan, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in routing output")
	}

	plan := &models.Plan{}
	if err := json.Unmarshal([]byte(raw), plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// extractJSON returns the outermost {...} span of the text.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

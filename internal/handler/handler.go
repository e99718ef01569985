// Package handler implements the delegate handlers: role-scoped
// reasoning loops that work one sub-task each with a restricted tool
// subset. Each handler runs a bounded request/tool cycle and enforces
// its role's response contract before handing the result back.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dettyhq/detty/internal/config"
	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/tools"
	"github.com/dettyhq/detty/pkg/models"
)

// Result is the outcome of one delegated sub-task.
type Result struct {
	// Record is the delegation record folded into consolidation.
	Record models.DelegationRecord
	// Invocations lists every tool call made, in order.
	Invocations []models.ToolInvocation
	// Degraded is set when the handler's contract could not be met
	// after a corrective retry; the response is still usable but must
	// be flagged.
	Degraded *models.Failure
}

// Handler runs sub-tasks for one delegate role.
type Handler struct {
	role          models.HandlerRole
	card          *config.RoleConfig
	eng           engine.Engine
	registry      *tools.Registry
	toolRetries   int
	contractRetry int
	toolTimeout   time.Duration
}

// Options tunes handler recovery behavior.
type Options struct {
	// ToolRetries is how many extra attempts a retryable tool failure
	// gets with identical arguments.
	ToolRetries int
	// ContractRetries is how many corrective rounds a contract
	// violation gets.
	ContractRetries int
	// ToolTimeout bounds each tool invocation. Zero means no bound.
	ToolTimeout time.Duration
}

// New builds a handler for the role described by card. The tool subset
// is carved from the full registry; a card naming an unknown tool is a
// configuration error.
func New(role models.HandlerRole, card *config.RoleConfig, eng engine.Engine, full *tools.Registry, opts Options) (*Handler, error) {
	if card == nil {
		return nil, fmt.Errorf("handler %s: no role card", role)
	}
	subset, err := full.Subset(card.Tools...)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", role, err)
	}
	return &Handler{
		role:          role,
		card:          card,
		eng:           eng,
		registry:      subset,
		toolRetries:   opts.ToolRetries,
		contractRetry: opts.ContractRetries,
		toolTimeout:   opts.ToolTimeout,
	}, nil
}

// Role returns the handler's role.
func (h *Handler) Role() models.HandlerRole { return h.role }

// Tools returns the names of the handler's restricted tool subset.
func (h *Handler) Tools() []string { return h.registry.Names() }

// Handle works one sub-task to completion. The returned error is
// reserved for failures the orchestrator must convert into a
// clarifying question (missing context) or absorb as a degraded
// partial (engine unavailable); contract degradation is reported via
// Result.Degraded.
func (h *Handler) Handle(ctx context.Context, subTask string, snap Snapshot) (*Result, error) {
	if h.role == models.RoleBooking {
		if err := checkBookingAntecedent(subTask, snap); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Record: models.DelegationRecord{
			TargetHandler: h.role,
			SubTask:       subTask,
		},
	}

	text, truncated, err := h.runLoop(ctx, subTask, snap, "", result)
	if err != nil {
		return nil, err
	}
	result.Record.Response = text
	result.Record.Truncated = truncated

	if violation := h.checkContract(result); violation != nil {
		for attempt := 0; attempt < h.contractRetry; attempt++ {
			text, truncated, err = h.runLoop(ctx, subTask, snap, violation.Message, result)
			if err != nil {
				return nil, err
			}
			result.Record.Response = text
			result.Record.Truncated = truncated
			violation = h.checkContract(result)
			if violation == nil {
				break
			}
		}
		if violation != nil {
			result.Degraded = violation
		}
	}

	return result, nil
}

// runLoop is the bounded request/tool cycle. A non-empty corrective
// string is appended to the system prompt to repair a contract
// violation on retry.
func (h *Handler) runLoop(ctx context.Context, subTask string, snap Snapshot, corrective string, result *Result) (text string, truncated bool, err error) {
	system := h.card.Instructions
	if corrective != "" {
		system += "\n\nYour previous answer was rejected: " + corrective + " Fix this in your next answer."
	}

	prompt := snap.Render()
	if prompt != "" {
		prompt += "\n\n"
	}
	prompt += "Task: " + subTask

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	toolParams := h.registry.AnthropicTools()

	var lastText string
	for round := 0; round < h.card.MaxRounds; round++ {
		resp, err := h.eng.Complete(ctx, engine.Request{
			System:   system,
			Messages: messages,
			Tools:    toolParams,
		})
		if err != nil {
			return "", false, models.NewFailure(models.FailUnavailable, fmt.Sprintf("%s handler: %v", h.role, err))
		}
		if resp.Text != "" {
			lastText = resp.Text
		}

		if resp.EndTurn || len(resp.ToolUses) == 0 {
			return lastText, false, nil
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		if resp.Text != "" {
			assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(resp.Text))
		}
		for _, use := range resp.ToolUses {
			assistantBlocks = append(assistantBlocks,
				anthropic.NewToolUseBlock(use.ID, use.Input, use.Name))

			payload, invErr := h.invokeWithRetry(ctx, use, result)
			if invErr != nil {
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(use.ID, invErr.Error(), true))
				continue
			}
			toolResultBlocks = append(toolResultBlocks,
				anthropic.NewToolResultBlock(use.ID, string(payload), false))
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
	}

	return lastText, true, nil
}

// pinArgs clamps tool arguments the role is not free to choose: the
// safety role only ever draws local tips from the safety category.
func (h *Handler) pinArgs(use engine.ToolUse) json.RawMessage {
	if h.role != models.RoleSafety || use.Name != tools.ToolGetLocalTips {
		return use.Input
	}
	var args map[string]any
	if err := json.Unmarshal(use.Input, &args); err != nil || args == nil {
		args = map[string]any{}
	}
	args["category"] = "safety"
	pinned, err := json.Marshal(args)
	if err != nil {
		return use.Input
	}
	return pinned
}

// invokeWithRetry runs one tool call, retrying retryable failures with
// identical arguments. Every attempt is recorded.
func (h *Handler) invokeWithRetry(ctx context.Context, use engine.ToolUse, result *Result) ([]byte, error) {
	use.Input = h.pinArgs(use)
	attempts := 1
	for {
		callCtx := ctx
		var cancel context.CancelFunc
		if h.toolTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, h.toolTimeout)
		}

		start := time.Now()
		payload, err := h.registry.Invoke(callCtx, use.Name, use.Input)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		inv := models.ToolInvocation{
			ToolName:  use.Name,
			Arguments: use.Input,
			Latency:   latency,
			Timestamp: start.UTC(),
		}
		if err != nil {
			inv.Err = err.Error()
		} else {
			inv.Result = payload
		}
		result.Invocations = append(result.Invocations, inv)

		if err == nil {
			return payload, nil
		}
		f, ok := models.AsFailure(err)
		if !ok || !f.RetryOnce() || attempts > h.toolRetries {
			return nil, err
		}
		attempts++
	}
}

// checkContract validates the role's structural response requirements.
// It also extracts the safety score into the delegation record.
func (h *Handler) checkContract(result *Result) *models.Failure {
	switch h.role {
	case models.RoleSafety:
		score, ok := ExtractSafetyScore(result.Record.Response)
		if !ok {
			return models.NewFailure(models.FailContractViolation,
				"a safety answer must state a numeric safety score from 1 to 10")
		}
		result.Record.SafetyScore = &score
		if !hasRecommendation(result.Record.Response) {
			return models.NewFailure(models.FailContractViolation,
				"a safety answer must include at least one concrete recommendation")
		}
	case models.RoleBooking:
		if result.Record.Response == "" {
			return models.NewFailure(models.FailContractViolation,
				"a booking answer must confirm the reminder or ask for the missing detail")
		}
	case models.RoleAdvisory:
		if result.Record.Response == "" {
			return models.NewFailure(models.FailContractViolation,
				"an advisory answer must not be empty")
		}
	}
	return nil
}

// checkBookingAntecedent rejects booking sub-tasks with no concrete
// prior selection to act on. A selection exists when the user has
// saved items or bookings in memory, or the sub-task itself names a
// dated choice.
func checkBookingAntecedent(subTask string, snap Snapshot) error {
	if len(snap.RecentMemory[models.BucketSaved]) > 0 ||
		len(snap.RecentMemory[models.BucketBookings]) > 0 {
		return nil
	}
	if mentionsDatedSelection(subTask) {
		return nil
	}
	return models.NewFailure(models.FailMissingContext,
		"no prior selection to book: name the venue or activity plus a date and time")
}

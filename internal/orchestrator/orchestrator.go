package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dettyhq/detty/internal/config"
	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/handler"
	"github.com/dettyhq/detty/internal/session"
	"github.com/dettyhq/detty/internal/tools"
	"github.com/dettyhq/detty/pkg/models"
)

// Stage is the turn processing stage.
type Stage string

const (
	// StageReceived marks an accepted user message.
	StageReceived Stage = "received"
	// StageRouting marks plan production.
	StageRouting Stage = "routing"
	// StageDispatching marks step execution (delegation and tool calls).
	StageDispatching Stage = "dispatching"
	// StageConsolidating marks partial-result merging.
	StageConsolidating Stage = "consolidating"
	// StageResponded marks a persisted reply.
	StageResponded Stage = "responded"
)

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	TurnID      string
	UserID      string
	Response    string
	Plan        *models.Plan
	Delegations []models.DelegationRecord
	Invocations []models.ToolInvocation
	Caveats     []string
	Stage       Stage
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store    session.Store
	Engine   engine.Engine
	Registry *tools.Registry
	Roles    *config.RoleConfigs
	Config   *config.Config
	Logger   *DebugLogger
	Audit    AuditHook
	Events   func(Event)
	Signals  *SignalManager
}

// Orchestrator coordinates turns end to end. Turns for the same user
// are serialized; different users proceed concurrently.
type Orchestrator struct {
	store    session.Store
	router   *Router
	registry *tools.Registry
	handlers map[models.HandlerRole]*handler.Handler
	cfg      *config.Config
	logger   *DebugLogger
	audit    AuditHook
	events   func(Event)
	signals  *SignalManager

	mu        sync.Mutex
	turnLocks map[string]*sync.Mutex
}

// New builds an orchestrator with one handler per delegate role.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Engine == nil || deps.Registry == nil {
		return nil, fmt.Errorf("orchestrator: store, engine, and registry are required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	roles := deps.Roles
	if roles == nil {
		roles = config.DefaultRoleConfigs()
	}
	logger := deps.Logger
	if logger == nil {
		logger = NopLogger()
	}

	opts := handler.Options{
		ToolRetries:     cfg.Retries.Unavailable,
		ContractRetries: cfg.Retries.Contract,
		ToolTimeout:     cfg.Timeouts.Tool,
	}
	handlers := make(map[models.HandlerRole]*handler.Handler, len(models.HandlerRoles))
	for _, role := range models.HandlerRoles {
		h, err := handler.New(role, roles.Get(role), deps.Engine, deps.Registry, opts)
		if err != nil {
			return nil, err
		}
		handlers[role] = h
	}

	return &Orchestrator{
		store:     deps.Store,
		router:    NewRouter(deps.Engine, logger),
		registry:  deps.Registry,
		handlers:  handlers,
		cfg:       cfg,
		logger:    logger,
		audit:     deps.Audit,
		events:    deps.Events,
		signals:   deps.Signals,
		turnLocks: make(map[string]*sync.Mutex),
	}, nil
}

// HandleTurn processes one user message to a consolidated reply and
// persists exactly one user/assistant turn pair. Failures inside plan
// steps are absorbed into the reply; the returned error is reserved
// for conditions that prevent replying at all.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, message string) (*TurnResult, error) {
	if userID == "" {
		userID = "guest"
	}
	if o.signals != nil {
		if o.signals.ShouldStop() {
			return nil, fmt.Errorf("stop signal received")
		}
		if err := o.signals.WaitResume(ctx); err != nil {
			return nil, fmt.Errorf("waiting for resume: %w", err)
		}
	}

	lock := o.turnLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if o.cfg.Timeouts.Turn > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeouts.Turn)
		defer cancel()
	}

	result := &TurnResult{
		TurnID: uuid.NewString(),
		UserID: userID,
		Stage:  StageReceived,
	}
	o.emit(Event{Type: EventTurnStarted, TurnID: result.TurnID, UserID: userID, Message: message})
	o.logger.Log("turn %s: user=%s message=%q", result.TurnID, userID, message)

	profile, err := o.store.Load(ctx, userID)
	if err != nil {
		o.emit(Event{Type: EventTurnFailed, TurnID: result.TurnID, UserID: userID, Error: err})
		return nil, fmt.Errorf("load profile: %w", err)
	}
	snap := handler.SnapshotFrom(profile, o.cfg.Context.HistoryTurns, o.cfg.Context.MemoryEntries)

	result.Stage = StageRouting
	routeStart := time.Now()
	plan, err := o.router.Route(ctx, message, snap)
	if err != nil {
		o.emit(Event{Type: EventTurnFailed, TurnID: result.TurnID, UserID: userID, Error: err})
		return nil, fmt.Errorf("route: %w", err)
	}
	result.Plan = plan
	o.record(result.TurnID, "router", json.RawMessage(mustJSON(message)), json.RawMessage(mustJSON(plan)), nil, time.Since(routeStart))
	o.emit(Event{Type: EventRouted, TurnID: result.TurnID, UserID: userID,
		Message: fmt.Sprintf("%d steps", len(plan.Steps))})

	// Preference updates extracted by the router apply before the
	// steps run, so handlers see them in their snapshots.
	if len(plan.Preferences) > 0 {
		profile.MergePreferences(plan.Preferences)
		snap = handler.SnapshotFrom(profile, o.cfg.Context.HistoryTurns, o.cfg.Context.MemoryEntries)
	}

	result.Stage = StageDispatching
	stepResults := o.dispatch(ctx, result.TurnID, plan.Steps, snap)

	result.Stage = StageConsolidating
	result.Response = o.consolidate(stepResults)
	for _, sr := range stepResults {
		if sr == nil {
			continue
		}
		if sr.record != nil {
			result.Delegations = append(result.Delegations, *sr.record)
		}
		result.Invocations = append(result.Invocations, sr.invocations...)
		if sr.caveat != "" {
			result.Caveats = append(result.Caveats, sr.caveat)
		}
	}
	o.emit(Event{Type: EventConsolidated, TurnID: result.TurnID, UserID: userID})

	now := time.Now().UTC()
	profile.ChatHistory = append(profile.ChatHistory,
		models.Turn{Role: models.RoleUser, Content: message, Timestamp: now},
		models.Turn{Role: models.RoleAssistant, Content: result.Response, Timestamp: now},
	)
	o.foldMemory(profile, result)
	if err := o.store.Save(ctx, profile); err != nil {
		o.emit(Event{Type: EventTurnFailed, TurnID: result.TurnID, UserID: userID, Error: err})
		return nil, fmt.Errorf("save profile: %w", err)
	}

	result.Stage = StageResponded
	o.emit(Event{Type: EventTurnCompleted, TurnID: result.TurnID, UserID: userID})
	o.logger.Log("turn %s: responded (%d delegations, %d tool calls, %d caveats)",
		result.TurnID, len(result.Delegations), len(result.Invocations), len(result.Caveats))
	return result, nil
}

// stepResult is the outcome of one plan step.
type stepResult struct {
	index       int
	kind        models.RouteKind
	text        string
	clarify     bool
	caveat      string
	record      *models.DelegationRecord
	invocations []models.ToolInvocation
	safetyScore *int
}

// dispatch runs the plan steps, respecting DependsOn: independent
// steps run concurrently, dependent steps wait for their inputs.
func (o *Orchestrator) dispatch(ctx context.Context, turnID string, steps []models.Route, snap handler.Snapshot) []*stepResult {
	results := make([]*stepResult, len(steps))
	done := make([]chan struct{}, len(steps))
	for i := range steps {
		done[i] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for i := range steps {
		wg.Add(1)
		go func(i int, step models.Route) {
			defer wg.Done()
			defer close(done[i])
			for _, dep := range step.DependsOn {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					results[i] = &stepResult{index: i, kind: step.Kind,
						caveat: fmt.Sprintf("step %d was cut short", i+1)}
					return
				}
			}
			results[i] = o.runStep(ctx, turnID, i, step, snap, results)
		}(i, steps[i])
	}
	wg.Wait()
	return results
}

// runStep executes one route. Dependency results are already complete
// when this runs.
func (o *Orchestrator) runStep(ctx context.Context, turnID string, index int, step models.Route, snap handler.Snapshot, prior []*stepResult) *stepResult {
	sr := &stepResult{index: index, kind: step.Kind}
	start := time.Now()

	switch step.Kind {
	case models.RouteDirect:
		sr.text = step.Text

	case models.RouteToolCall:
		inv, payload, err := o.invokeTool(ctx, step.Tool, step.Args)
		sr.invocations = inv
		if err != nil {
			f, ok := models.AsFailure(err)
			switch {
			case ok && f.NeedsClarification():
				sr.clarify = true
				sr.text = clarifyText(f)
			default:
				sr.caveat = fmt.Sprintf("live data for %s is unavailable right now", step.Tool)
			}
		} else {
			sr.text = summarizeToolPayload(step.Tool, payload)
		}
		o.record(turnID, "tool:"+step.Tool, step.Args, payload, err, time.Since(start))
		o.emit(Event{Type: EventToolInvoked, TurnID: turnID, Tool: step.Tool, Error: err})

	case models.RouteDelegate:
		h, ok := o.handlers[step.Role]
		if !ok {
			sr.caveat = fmt.Sprintf("no handler for role %s", step.Role)
			break
		}
		subTask := step.SubTask
		if depCtx := renderDependencies(step.DependsOn, prior); depCtx != "" {
			subTask += "\n\nResults from earlier steps:\n" + depCtx
		}
		o.emit(Event{Type: EventDelegationStarted, TurnID: turnID, Role: step.Role, Message: step.SubTask})

		hctx := ctx
		var cancel context.CancelFunc
		if o.cfg.Timeouts.Handler > 0 {
			hctx, cancel = context.WithTimeout(ctx, o.cfg.Timeouts.Handler)
		}
		res, err := h.Handle(hctx, subTask, snap)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			f, ok := models.AsFailure(err)
			switch {
			case ok && f.NeedsClarification():
				sr.clarify = true
				sr.text = clarifyText(f)
			default:
				sr.caveat = fmt.Sprintf("the %s specialist is unavailable right now", step.Role)
			}
			o.record(turnID, "handler:"+string(step.Role), json.RawMessage(mustJSON(subTask)), nil, err, time.Since(start))
			o.emit(Event{Type: EventDelegationCompleted, TurnID: turnID, Role: step.Role, Error: err})
			break
		}
		sr.text = res.Record.Response
		sr.record = &res.Record
		sr.invocations = res.Invocations
		sr.safetyScore = res.Record.SafetyScore
		if res.Degraded != nil {
			sr.caveat = fmt.Sprintf("the %s answer could not be fully verified (%s)", step.Role, res.Degraded.Message)
		}
		if res.Record.Truncated {
			sr.caveat = fmt.Sprintf("the %s answer was cut short", step.Role)
		}
		o.record(turnID, "handler:"+string(step.Role), json.RawMessage(mustJSON(subTask)),
			json.RawMessage(mustJSON(res.Record)), nil, time.Since(start))
		o.emit(Event{Type: EventDelegationCompleted, TurnID: turnID, Role: step.Role})
	}

	return sr
}

// invokeTool runs one orchestrator-level tool call with the same
// single-retry policy handlers use.
func (o *Orchestrator) invokeTool(ctx context.Context, name string, args json.RawMessage) ([]models.ToolInvocation, json.RawMessage, error) {
	var invocations []models.ToolInvocation
	attempts := 0
	for {
		attempts++
		callCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.Timeouts.Tool > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeouts.Tool)
		}
		start := time.Now()
		payload, err := o.registry.Invoke(callCtx, name, args)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		inv := models.ToolInvocation{
			ToolName:  name,
			Arguments: args,
			Latency:   latency,
			Timestamp: start.UTC(),
		}
		if err != nil {
			inv.Err = err.Error()
		} else {
			inv.Result = payload
		}
		invocations = append(invocations, inv)

		if err == nil {
			return invocations, payload, nil
		}
		f, ok := models.AsFailure(err)
		if !ok || !f.RetryOnce() || attempts > o.cfg.Retries.Unavailable {
			return invocations, nil, err
		}
	}
}

// foldMemory persists durable facts surfaced during the turn: low
// safety scores into alerts, confirmed reminders into bookings.
func (o *Orchestrator) foldMemory(profile *models.UserProfile, result *TurnResult) {
	now := time.Now().UTC()
	for _, rec := range result.Delegations {
		if rec.SafetyScore != nil && *rec.SafetyScore < o.cfg.Safety.Threshold {
			data := mustJSON(map[string]any{
				"sub_task": rec.SubTask,
				"score":    *rec.SafetyScore,
			})
			profile.MemoryBank[models.BucketAlerts] = append(profile.MemoryBank[models.BucketAlerts],
				models.MemoryEntry{Data: json.RawMessage(data), Timestamp: now})
		}
	}
	for _, inv := range result.Invocations {
		if inv.ToolName == tools.ToolScheduleReminder && inv.Err == "" {
			profile.MemoryBank[models.BucketBookings] = append(profile.MemoryBank[models.BucketBookings],
				models.MemoryEntry{Data: inv.Result, Timestamp: now})
		}
	}
}

func (o *Orchestrator) turnLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.turnLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.turnLocks[userID] = l
	}
	return l
}

func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	o.events(ev)
}

func (o *Orchestrator) record(turnID, component string, input, output json.RawMessage, err error, latency time.Duration) {
	if o.audit == nil {
		return
	}
	rec := AuditRecord{
		TurnID:    turnID,
		Component: component,
		Input:     input,
		Output:    output,
		Latency:   latency,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		rec.Err = err.Error()
	}
	o.audit(rec)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`null`)
	}
	return data
}

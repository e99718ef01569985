package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dettyhq/detty/internal/config"
	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/session"
	"github.com/dettyhq/detty/internal/tools"
	"github.com/dettyhq/detty/pkg/models"
)

// routed registers a rule answering the routing call with planJSON.
func routed(eng *engine.Scripted, planJSON string) *engine.Scripted {
	return eng.On(
		func(req engine.Request) bool { return strings.Contains(req.System, "routing layer") },
		func(engine.Request) *engine.Response { return engine.Text(planJSON) },
	)
}

func newOrchestrator(t *testing.T, eng engine.Engine, store session.Store) *Orchestrator {
	t.Helper()
	if store == nil {
		store = session.NewMemoryStore()
	}
	o, err := New(Deps{
		Store:    store,
		Engine:   eng,
		Registry: tools.NewLagosRegistry(nil),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

func TestDirectTurnAppendsOnePair(t *testing.T) {
	store := session.NewMemoryStore()
	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"direct","text":"Welcome to Lagos!"}]}`)

	o := newOrchestrator(t, eng, store)
	res, err := o.HandleTurn(context.Background(), "ada", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if res.Stage != StageResponded {
		t.Errorf("stage = %q, want responded", res.Stage)
	}
	if res.Response != "Welcome to Lagos!" {
		t.Errorf("response = %q", res.Response)
	}

	p, _ := store.Load(context.Background(), "ada")
	if len(p.ChatHistory) != 2 {
		t.Fatalf("history has %d turns, want exactly one user/assistant pair", len(p.ChatHistory))
	}
	if p.ChatHistory[0].Role != models.RoleUser || p.ChatHistory[1].Role != models.RoleAssistant {
		t.Errorf("pair roles = %s,%s", p.ChatHistory[0].Role, p.ChatHistory[1].Role)
	}
}

func TestToolCallTurn(t *testing.T) {
	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"tool_call","tool":"getLocalTips","args":{"category":"food"}}]}`)

	o := newOrchestrator(t, eng, nil)
	res, err := o.HandleTurn(context.Background(), "ada", "food tips?")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if len(res.Invocations) != 1 || res.Invocations[0].ToolName != tools.ToolGetLocalTips {
		t.Fatalf("invocations = %+v", res.Invocations)
	}
	if !strings.Contains(res.Response, "Food tips:") {
		t.Errorf("response = %q, want rendered tips", res.Response)
	}
}

func TestSafetyFindingLeadsResponse(t *testing.T) {
	eng := routed(engine.NewScripted(),
		`{"steps":[
			{"kind":"delegate","role":"advisory","sub_task":"nightlife in Surulere"},
			{"kind":"delegate","role":"safety","sub_task":"Surulere at night"}
		]}`).
		On(func(req engine.Request) bool { return strings.Contains(req.System, "tourism advisor") },
			func(engine.Request) *engine.Response {
				return engine.Text("Surulere has great live music spots.")
			}).
		On(func(req engine.Request) bool { return strings.Contains(req.System, "safety assessor") },
			func(engine.Request) *engine.Response {
				return engine.Text("Surulere safety score: 4/10 at night. I recommend registered taxis only.")
			})

	store := session.NewMemoryStore()
	o := newOrchestrator(t, eng, store)
	res, err := o.HandleTurn(context.Background(), "ada", "nightlife in Surulere tonight?")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}

	// The low safety finding must come before the advisory content.
	safetyPos := strings.Index(res.Response, "4/10")
	advisoryPos := strings.Index(res.Response, "live music")
	if safetyPos == -1 || advisoryPos == -1 {
		t.Fatalf("response missing parts: %q", res.Response)
	}
	if safetyPos > advisoryPos {
		t.Errorf("safety finding does not lead:\n%s", res.Response)
	}
	if len(res.Delegations) != 2 {
		t.Errorf("%d delegations, want 2", len(res.Delegations))
	}

	// Low score is folded into the alerts bucket.
	p, _ := store.Load(context.Background(), "ada")
	if len(p.MemoryBank[models.BucketAlerts]) != 1 {
		t.Errorf("alerts bucket has %d entries, want 1", len(p.MemoryBank[models.BucketAlerts]))
	}
}

func TestDependentStepSeesEarlierOutput(t *testing.T) {
	var bookingPrompt string
	var mu sync.Mutex

	eng := routed(engine.NewScripted(),
		`{"steps":[
			{"kind":"delegate","role":"advisory","sub_task":"pick a restaurant in Lekki"},
			{"kind":"delegate","role":"booking","sub_task":"book it for 2026-12-24 at 19:00","depends_on":[0]}
		]}`).
		On(func(req engine.Request) bool { return strings.Contains(req.System, "tourism advisor") },
			func(engine.Request) *engine.Response {
				return engine.Text("Nok by Alara is the pick.")
			}).
		On(func(req engine.Request) bool { return strings.Contains(req.System, "booking assistant") },
			func(req engine.Request) *engine.Response {
				mu.Lock()
				bookingPrompt = engine.LastUserText(req)
				mu.Unlock()
				return engine.Text("Reminder set for Nok by Alara.")
			})

	o := newOrchestrator(t, eng, nil)
	res, err := o.HandleTurn(context.Background(), "ada", "pick a restaurant and book it for Dec 24")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(bookingPrompt, "Nok by Alara") {
		t.Errorf("booking step did not receive the advisory output:\n%s", bookingPrompt)
	}
	if !strings.Contains(res.Response, "Reminder set") {
		t.Errorf("response = %q", res.Response)
	}
}

func TestBookingWithoutAntecedentAsksForClarification(t *testing.T) {
	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"delegate","role":"booking","sub_task":"book something"}]}`)

	store := session.NewMemoryStore()
	o := newOrchestrator(t, eng, store)
	res, err := o.HandleTurn(context.Background(), "ada", "book something for me")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if !strings.Contains(res.Response, "I need one thing from you") {
		t.Errorf("response = %q, want clarifying question", res.Response)
	}
	// The turn still persists its pair.
	p, _ := store.Load(context.Background(), "ada")
	if len(p.ChatHistory) != 2 {
		t.Errorf("history has %d turns, want 2", len(p.ChatHistory))
	}
}

func TestHandlerFailureAbsorbedAsPartial(t *testing.T) {
	// The advisory engine call errors; the direct step still answers.
	eng := routed(engine.NewScripted(),
		`{"steps":[
			{"kind":"direct","text":"Here is what I know."},
			{"kind":"delegate","role":"advisory","sub_task":"beaches"}
		]}`)
	failing := &failingEngine{inner: eng, failWhen: "tourism advisor"}
	o := newOrchestrator(t, failing, nil)

	res, err := o.HandleTurn(context.Background(), "ada", "beaches please")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if !strings.Contains(res.Response, "Here is what I know.") {
		t.Errorf("direct partial missing: %q", res.Response)
	}
	if len(res.Caveats) == 0 || !strings.Contains(res.Response, "Note:") {
		t.Errorf("absorbed failure not surfaced as caveat: %+v", res)
	}
	if res.Stage != StageResponded {
		t.Errorf("stage = %q", res.Stage)
	}
}

func TestStalledHandlerTimedOutAsPartial(t *testing.T) {
	// The advisory engine call hangs; the handler deadline cuts it off
	// well before the turn budget, and the direct step still answers.
	eng := routed(engine.NewScripted(),
		`{"steps":[
			{"kind":"direct","text":"Here is what I know."},
			{"kind":"delegate","role":"advisory","sub_task":"beaches"}
		]}`)
	stalled := &stallingEngine{inner: eng, stallWhen: "tourism advisor"}

	cfg := config.Default()
	cfg.Timeouts.Handler = 50 * time.Millisecond
	o, err := New(Deps{
		Store:    session.NewMemoryStore(),
		Engine:   stalled,
		Registry: tools.NewLagosRegistry(nil),
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	start := time.Now()
	res, err := o.HandleTurn(context.Background(), "ada", "beaches please")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("turn took %v, want the handler deadline to cut it off", elapsed)
	}
	if !strings.Contains(res.Response, "Here is what I know.") {
		t.Errorf("direct partial missing: %q", res.Response)
	}
	if len(res.Caveats) == 0 || !strings.Contains(res.Caveats[0], "advisory specialist") {
		t.Errorf("timed-out delegation not surfaced as caveat: %v", res.Caveats)
	}
}

func TestPreferencesMergedFromPlan(t *testing.T) {
	store := session.NewMemoryStore()
	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"direct","text":"Noted, luxury it is."}],"preferences":{"budget":"luxury"}}`)

	o := newOrchestrator(t, eng, store)
	if _, err := o.HandleTurn(context.Background(), "ada", "money is no object"); err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}

	p, _ := store.Load(context.Background(), "ada")
	if p.Preferences[models.PrefBudget] != "luxury" {
		t.Errorf("budget = %q, want luxury", p.Preferences[models.PrefBudget])
	}
}

func TestReminderFoldedIntoBookings(t *testing.T) {
	store := session.NewMemoryStore()
	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"tool_call","tool":"scheduleReminder","args":{"location":"VI","activity":"dinner","date":"2026-12-24","time":"19:00","userId":"ada"}}]}`)

	o := newOrchestrator(t, eng, store)
	res, err := o.HandleTurn(context.Background(), "ada", "remind me about dinner")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if !strings.Contains(res.Response, "REM-") {
		t.Errorf("response = %q, want confirmation ID", res.Response)
	}

	p, _ := store.Load(context.Background(), "ada")
	if len(p.MemoryBank[models.BucketBookings]) != 1 {
		t.Errorf("bookings bucket has %d entries, want 1", len(p.MemoryBank[models.BucketBookings]))
	}
}

func TestEmptyUserDefaultsToGuest(t *testing.T) {
	store := session.NewMemoryStore()
	eng := routed(engine.NewScripted(), `{"steps":[{"kind":"direct","text":"hi"}]}`)

	o := newOrchestrator(t, eng, store)
	res, err := o.HandleTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if res.UserID != "guest" {
		t.Errorf("UserID = %q, want guest", res.UserID)
	}
}

func TestConcurrentTurnsDistinctUsers(t *testing.T) {
	store := session.NewMemoryStore()
	eng := routed(engine.NewScripted(), `{"steps":[{"kind":"direct","text":"ok"}]}`)
	o := newOrchestrator(t, eng, store)

	var wg sync.WaitGroup
	users := []string{"ada", "bayo", "chioma", "dele"}
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if _, err := o.HandleTurn(context.Background(), u, "hello"); err != nil {
					t.Errorf("%s: HandleTurn() error: %v", u, err)
				}
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		p, _ := store.Load(context.Background(), u)
		if len(p.ChatHistory) != 6 {
			t.Errorf("%s: history has %d turns, want 6", u, len(p.ChatHistory))
		}
	}
}

func TestEventsEmittedInOrder(t *testing.T) {
	var mu sync.Mutex
	var types []EventType

	eng := routed(engine.NewScripted(), `{"steps":[{"kind":"direct","text":"hi"}]}`)
	o, err := New(Deps{
		Store:    session.NewMemoryStore(),
		Engine:   eng,
		Registry: tools.NewLagosRegistry(nil),
		Events: func(ev Event) {
			mu.Lock()
			types = append(types, ev.Type)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := o.HandleTurn(context.Background(), "ada", "hello"); err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventTurnStarted, EventRouted, EventConsolidated, EventTurnCompleted}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestAuditHookRecordsComponents(t *testing.T) {
	var mu sync.Mutex
	var components []string

	eng := routed(engine.NewScripted(),
		`{"steps":[{"kind":"tool_call","tool":"getLocalTips","args":{"category":"food"}}]}`)
	o, err := New(Deps{
		Store:    session.NewMemoryStore(),
		Engine:   eng,
		Registry: tools.NewLagosRegistry(nil),
		Audit: func(rec AuditRecord) {
			mu.Lock()
			components = append(components, rec.Component)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := o.HandleTurn(context.Background(), "ada", "food tips")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(components) != 2 || components[0] != "router" || components[1] != "tool:getLocalTips" {
		t.Errorf("audited components = %v", components)
	}
	if res.TurnID == "" {
		t.Error("empty turn ID")
	}
}

// stallingEngine hangs on requests whose system prompt contains
// stallWhen until the context ends, passing everything else through.
type stallingEngine struct {
	inner     engine.Engine
	stallWhen string
}

func (s *stallingEngine) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	if strings.Contains(req.System, s.stallWhen) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.inner.Complete(ctx, req)
}

// failingEngine errors for requests whose system prompt contains
// failWhen, passing everything else through.
type failingEngine struct {
	inner    engine.Engine
	failWhen string
}

func (f *failingEngine) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	if strings.Contains(req.System, f.failWhen) {
		return nil, context.DeadlineExceeded
	}
	return f.inner.Complete(ctx, req)
}

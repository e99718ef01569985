package handler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dettyhq/detty/internal/config"
	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/tools"
	"github.com/dettyhq/detty/pkg/models"
)

func newHandler(t *testing.T, role models.HandlerRole, eng engine.Engine) *Handler {
	t.Helper()
	cards := config.DefaultRoleConfigs()
	h, err := New(role, cards.Get(role), eng, tools.NewLagosRegistry(nil), Options{
		ToolRetries:     1,
		ContractRetries: 1,
	})
	if err != nil {
		t.Fatalf("New(%s) error: %v", role, err)
	}
	return h
}

func TestAdvisoryToolCycle(t *testing.T) {
	eng := engine.NewScripted().On(
		func(req engine.Request) bool { return !engine.HasToolResult(req) },
		func(engine.Request) *engine.Response {
			return engine.UseTool("t1", tools.ToolFindAttractions,
				`{"location":"Lekki","category":"beach","budgetTier":"budget"}`)
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Lekki Beach is your best pick; go early to avoid crowds.")
	})

	h := newHandler(t, models.RoleAdvisory, eng)
	res, err := h.Handle(context.Background(), "find beaches in Lekki", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.Record.Response == "" || res.Record.Truncated {
		t.Errorf("record = %+v", res.Record)
	}
	if len(res.Invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(res.Invocations))
	}
	if res.Invocations[0].ToolName != tools.ToolFindAttractions || res.Invocations[0].Err != "" {
		t.Errorf("invocation = %+v", res.Invocations[0])
	}
	if res.Degraded != nil {
		t.Errorf("unexpected degradation: %v", res.Degraded)
	}
}

func TestHandlerToolSubsetEnforced(t *testing.T) {
	// Advisory must not be able to reach scheduleReminder even when the
	// model asks for it.
	eng := engine.NewScripted().On(
		func(req engine.Request) bool { return !engine.HasToolResult(req) },
		func(engine.Request) *engine.Response {
			return engine.UseTool("t1", tools.ToolScheduleReminder,
				`{"location":"VI","activity":"dinner","date":"2026-12-24","time":"19:00","userId":"ada"}`)
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("I can only advise, not book.")
	})

	h := newHandler(t, models.RoleAdvisory, eng)
	res, err := h.Handle(context.Background(), "book dinner", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(res.Invocations) != 1 || res.Invocations[0].Err == "" {
		t.Fatalf("invocations = %+v, want one failed call", res.Invocations)
	}
	if !strings.Contains(res.Invocations[0].Err, "invalid_argument") {
		t.Errorf("out-of-subset error = %q", res.Invocations[0].Err)
	}
}

func TestAdvisoryToolAllowlist(t *testing.T) {
	// Advisory advises only: attractions and tips. Lodging lookups
	// belong to the booking role.
	h := newHandler(t, models.RoleAdvisory, engine.NewScripted())
	want := []string{tools.ToolFindAttractions, tools.ToolGetLocalTips}
	got := h.Tools()
	if len(got) != len(want) {
		t.Fatalf("advisory tools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("advisory tools[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAdvisoryCannotFindLodging(t *testing.T) {
	eng := engine.NewScripted().On(
		func(req engine.Request) bool { return !engine.HasToolResult(req) },
		func(engine.Request) *engine.Response {
			return engine.UseTool("t1", tools.ToolFindLodging,
				`{"location":"VI","budgetTier":"luxury","nights":3,"checkinDate":"2026-12-20"}`)
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("For lodging, ask the booking assistant.")
	})

	h := newHandler(t, models.RoleAdvisory, eng)
	res, err := h.Handle(context.Background(), "where should I stay?", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(res.Invocations) != 1 || res.Invocations[0].Err == "" {
		t.Fatalf("invocations = %+v, want one failed call", res.Invocations)
	}
	if !strings.Contains(res.Invocations[0].Err, "invalid_argument") {
		t.Errorf("out-of-subset error = %q", res.Invocations[0].Err)
	}
}

func TestSafetyTipsPinnedToSafetyCategory(t *testing.T) {
	// Even when the model asks for another tips category, the safety
	// role only ever receives safety tips.
	eng := engine.NewScripted().On(
		func(req engine.Request) bool { return !engine.HasToolResult(req) },
		func(engine.Request) *engine.Response {
			return engine.UseTool("t1", tools.ToolGetLocalTips, `{"category":"food"}`)
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Lekki safety score: 7/10. I recommend registered rides after dark.")
	})

	h := newHandler(t, models.RoleSafety, eng)
	res, err := h.Handle(context.Background(), "tips for staying safe", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(res.Invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(res.Invocations))
	}
	inv := res.Invocations[0]
	if inv.Err != "" {
		t.Fatalf("invocation failed: %s", inv.Err)
	}
	if !strings.Contains(string(inv.Arguments), `"category":"safety"`) {
		t.Errorf("arguments = %s, want pinned safety category", inv.Arguments)
	}
}

func TestSafetyContractRetrySucceeds(t *testing.T) {
	eng := engine.NewScripted().On(
		func(req engine.Request) bool { return strings.Contains(req.System, "rejected") },
		func(engine.Request) *engine.Response {
			return engine.Text("Lekki safety score: 6/10 at night. I recommend registered ride-hailing after dark.")
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Lekki is okay at night, mostly.")
	})

	h := newHandler(t, models.RoleSafety, eng)
	res, err := h.Handle(context.Background(), "how safe is Lekki at night?", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.Degraded != nil {
		t.Fatalf("contract retry did not clear the violation: %v", res.Degraded)
	}
	if res.Record.SafetyScore == nil || *res.Record.SafetyScore != 6 {
		t.Errorf("SafetyScore = %v, want 6", res.Record.SafetyScore)
	}
}

func TestSafetyContractDegradesAfterRetry(t *testing.T) {
	eng := engine.NewScripted().SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("It depends on where you go.")
	})

	h := newHandler(t, models.RoleSafety, eng)
	res, err := h.Handle(context.Background(), "how safe is Surulere?", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.Degraded == nil {
		t.Fatal("persistent contract violation was not flagged")
	}
	if res.Degraded.Code != models.FailContractViolation {
		t.Errorf("degradation code = %q", res.Degraded.Code)
	}
	if res.Record.Response == "" {
		t.Error("degraded result should still carry the response text")
	}
	// Initial round plus one corrective round.
	if eng.Calls() != 2 {
		t.Errorf("engine calls = %d, want 2", eng.Calls())
	}
}

func TestBookingRequiresAntecedent(t *testing.T) {
	eng := engine.NewScripted()
	h := newHandler(t, models.RoleBooking, eng)

	_, err := h.Handle(context.Background(), "book something nice", Snapshot{})
	f, ok := models.AsFailure(err)
	if !ok || f.Code != models.FailMissingContext {
		t.Fatalf("error = %v, want missing_context failure", err)
	}
	if !f.NeedsClarification() {
		t.Error("missing_context should need clarification")
	}
	if eng.Calls() != 0 {
		t.Errorf("engine was called %d times before the antecedent check", eng.Calls())
	}
}

func TestBookingAcceptsSavedSelection(t *testing.T) {
	eng := engine.NewScripted().SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Reminder set, confirmation REM-123.")
	})
	h := newHandler(t, models.RoleBooking, eng)

	snap := Snapshot{
		RecentMemory: map[models.MemoryBucket][]models.MemoryEntry{
			models.BucketSaved: {{Data: json.RawMessage(`{"name":"Quilox"}`)}},
		},
	}
	res, err := h.Handle(context.Background(), "book the one I saved", snap)
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.Record.Response == "" {
		t.Error("empty booking response")
	}
}

func TestBookingAcceptsDatedSubTask(t *testing.T) {
	eng := engine.NewScripted().SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Done.")
	})
	h := newHandler(t, models.RoleBooking, eng)

	if _, err := h.Handle(context.Background(),
		"book dinner at Nok on 2026-12-24 at 7pm", Snapshot{}); err != nil {
		t.Fatalf("dated sub-task rejected: %v", err)
	}
}

func TestHandlerTruncatesAtMaxRounds(t *testing.T) {
	// The model keeps asking for tools and never ends the turn.
	eng := engine.NewScripted().SetFallback(func(engine.Request) *engine.Response {
		return engine.UseTool("t", tools.ToolGetLocalTips, `{"category":"food"}`)
	})

	h := newHandler(t, models.RoleAdvisory, eng)
	res, err := h.Handle(context.Background(), "tips please", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !res.Record.Truncated {
		t.Error("Truncated flag not set after exhausting rounds")
	}
	cards := config.DefaultRoleConfigs()
	if len(res.Invocations) != cards.Advisory.MaxRounds {
		t.Errorf("%d invocations, want one per round (%d)", len(res.Invocations), cards.Advisory.MaxRounds)
	}
}

func TestRetryableToolFailureRetriedOnce(t *testing.T) {
	// Empty dataset makes getLocalTips unavailable.
	registry := tools.NewLagosRegistry(&tools.Dataset{})
	cards := config.DefaultRoleConfigs()

	calls := 0
	eng := engine.NewScripted().On(
		func(req engine.Request) bool {
			calls++
			return calls == 1
		},
		func(engine.Request) *engine.Response {
			return engine.UseTool("t1", tools.ToolGetLocalTips, `{"category":"food"}`)
		},
	).SetFallback(func(engine.Request) *engine.Response {
		return engine.Text("Tip data is unavailable right now.")
	})

	h, err := New(models.RoleAdvisory, cards.Advisory, eng, registry, Options{
		ToolRetries:     1,
		ContractRetries: 1,
		ToolTimeout:     time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	res, err := h.Handle(context.Background(), "food tips", Snapshot{})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	// One original attempt plus exactly one retry, both recorded.
	if len(res.Invocations) != 2 {
		t.Fatalf("%d invocations, want 2 (attempt + retry)", len(res.Invocations))
	}
	for i, inv := range res.Invocations {
		if inv.Err == "" {
			t.Errorf("invocation %d unexpectedly succeeded", i)
		}
	}
}

func TestExtractSafetyScore(t *testing.T) {
	tests := []struct {
		text  string
		want  int
		found bool
	}{
		{"Safety score: 7", 7, true},
		{"The score is 9/10 during the day.", 9, true},
		{"I'd rate it 6/10 at night.", 6, true},
		{"score of 10 overall", 10, true},
		{"It is quite safe.", 0, false},
		{"Call 999 in an emergency.", 0, false},
	}
	for _, tt := range tests {
		got, found := ExtractSafetyScore(tt.text)
		if found != tt.found || got != tt.want {
			t.Errorf("ExtractSafetyScore(%q) = %d,%v want %d,%v", tt.text, got, found, tt.want, tt.found)
		}
	}
}

func TestSnapshotRender(t *testing.T) {
	p := models.NewUserProfile("ada")
	p.Preferences[models.PrefBudget] = "moderate"
	p.ChatHistory = append(p.ChatHistory, models.Turn{Role: models.RoleUser, Content: "hello"})
	p.MemoryBank[models.BucketSaved] = []models.MemoryEntry{
		{Data: json.RawMessage(`{"name":"Craft"}`)},
	}

	out := SnapshotFrom(p, 6, 5).Render()
	for _, want := range []string{"ada", "budget: moderate", "[saved]", "user: hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered snapshot missing %q:\n%s", want, out)
		}
	}

	if got := (Snapshot{}).Render(); got != "" {
		t.Errorf("empty snapshot rendered %q, want empty", got)
	}
}

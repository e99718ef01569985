package tools

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/dettyhq/detty/pkg/models"
)

func invoke(t *testing.T, r *Registry, tool, args string) json.RawMessage {
	t.Helper()
	out, err := r.Invoke(context.Background(), tool, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s(%s) error: %v", tool, args, err)
	}
	return out
}

func TestFindAttractionsRanked(t *testing.T) {
	r := testRegistry(t)

	out := invoke(t, r, ToolFindAttractions,
		`{"location":"Lekki","category":"beach","budgetTier":"budget"}`)

	var res AttractionsResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if res.Count == 0 || res.Count != len(res.Attractions) {
		t.Fatalf("count = %d with %d attractions", res.Count, len(res.Attractions))
	}
	for i := 1; i < len(res.Attractions); i++ {
		if res.Attractions[i].Rating > res.Attractions[i-1].Rating {
			t.Errorf("attractions not ranked by rating at index %d", i)
		}
	}
}

func TestFindAttractionsNotFound(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Invoke(context.Background(), ToolFindAttractions,
		json.RawMessage(`{"location":"Mars","category":"beach","budgetTier":"budget"}`))
	f, ok := models.AsFailure(err)
	if !ok || f.Code != models.FailNotFound {
		t.Fatalf("error = %v, want not_found failure", err)
	}
	if !f.RetryOnce() {
		t.Error("not_found failure should qualify for one retry")
	}
}

func TestAssessSafetyKnownArea(t *testing.T) {
	r := testRegistry(t)

	out := invoke(t, r, ToolAssessSafety, `{"location":"VI","timeOfDay":"night"}`)

	var res SafetyResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if res.Score != 8 {
		t.Errorf("VI night score = %d, want 8", res.Score)
	}
	if res.Status != "safe" {
		t.Errorf("VI night status = %q, want safe", res.Status)
	}
	if len(res.EmergencyContacts) == 0 {
		t.Error("safety payload missing emergency contacts")
	}
}

func TestAssessSafetyUnknownAreaDefaults(t *testing.T) {
	r := testRegistry(t)

	out := invoke(t, r, ToolAssessSafety, `{"location":"Badagry","timeOfDay":"night"}`)

	var res SafetyResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if res.Score != 3 {
		t.Errorf("unknown area night score = %d, want conservative 3", res.Score)
	}
	if res.Status != "avoid" {
		t.Errorf("unknown area night status = %q, want avoid", res.Status)
	}
	if len(res.Alerts) == 0 || len(res.Recommendations) == 0 {
		t.Error("unknown area should still carry alerts and recommendations")
	}
}

func TestFindLodgingEstimatesTotal(t *testing.T) {
	r := testRegistry(t)

	out := invoke(t, r, ToolFindLodging,
		`{"location":"VI","budgetTier":"luxury","nights":3,"checkinDate":"2026-12-20"}`)

	var res LodgingResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(res.Options) == 0 {
		t.Fatal("no lodging options returned")
	}
	if res.Options[0].Rating < res.Options[len(res.Options)-1].Rating {
		t.Error("options not ranked by rating")
	}
	if want := res.Options[0].PricePerNight * 3; res.EstimatedTotal != want {
		t.Errorf("EstimatedTotal = %d, want %d", res.EstimatedTotal, want)
	}
}

func TestFindLodgingRejectsNonPositiveNights(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Invoke(context.Background(), ToolFindLodging,
		json.RawMessage(`{"location":"VI","budgetTier":"luxury","nights":0,"checkinDate":"2026-12-20"}`))
	f, ok := models.AsFailure(err)
	if !ok || f.Code != models.FailInvalidArgument {
		t.Errorf("nights=0 error = %v, want invalid_argument failure", err)
	}
}

func TestGetLocalTipsCapped(t *testing.T) {
	r := testRegistry(t)

	for _, cat := range TipCategories {
		out := invoke(t, r, ToolGetLocalTips, `{"category":"`+cat+`"}`)
		var res TipsResult
		if err := json.Unmarshal(out, &res); err != nil {
			t.Fatalf("%s: decode payload: %v", cat, err)
		}
		if len(res.Tips) == 0 || len(res.Tips) > 5 {
			t.Errorf("%s: %d tips, want 1-5", cat, len(res.Tips))
		}
	}
}

func TestGetLocalTipsUnavailable(t *testing.T) {
	r := NewLagosRegistry(&Dataset{Tips: map[string][]string{}})

	_, err := r.Invoke(context.Background(), ToolGetLocalTips,
		json.RawMessage(`{"category":"food"}`))
	f, ok := models.AsFailure(err)
	if !ok || f.Code != models.FailUnavailable {
		t.Errorf("empty dataset error = %v, want unavailable failure", err)
	}
}

func TestScheduleReminderConfirmation(t *testing.T) {
	r := testRegistry(t)

	out := invoke(t, r, ToolScheduleReminder,
		`{"location":"VI","activity":"dinner at Nok","date":"2026-12-24","time":"19:00","userId":"ada"}`)

	var res ReminderResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.HasPrefix(res.ReminderID, "REM-") {
		t.Errorf("ReminderID = %q, want REM- prefix", res.ReminderID)
	}
	if res.UserID != "ada" {
		t.Errorf("UserID = %q, want ada", res.UserID)
	}
	if res.Message == "" {
		t.Error("confirmation message is empty")
	}
}

func TestScheduleReminderRejectsBadDate(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Invoke(context.Background(), ToolScheduleReminder,
		json.RawMessage(`{"location":"VI","activity":"dinner","date":"Dec 24","time":"19:00","userId":"ada"}`))
	f, ok := models.AsFailure(err)
	if !ok || f.Code != models.FailInvalidArgument {
		t.Errorf("bad date error = %v, want invalid_argument failure", err)
	}
}

func TestLoadDatasetOverride(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dataset.yaml"
	yaml := `
tips:
  food:
    - "Only one tip"
emergency_contacts:
  police: "999"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset() error: %v", err)
	}
	if len(ds.Tips["food"]) != 1 {
		t.Errorf("override has %d food tips, want 1", len(ds.Tips["food"]))
	}
}

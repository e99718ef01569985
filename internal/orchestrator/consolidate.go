package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dettyhq/detty/internal/tools"
	"github.com/dettyhq/detty/pkg/models"
)

// consolidate merges step results into one reply. Safety findings
// below the threshold lead the response regardless of plan order;
// everything else follows in step order, with degradation caveats
// appended last.
func (o *Orchestrator) consolidate(results []*stepResult) string {
	var lead string
	leadIndex := -1
	for _, sr := range results {
		if sr == nil || sr.safetyScore == nil || sr.text == "" {
			continue
		}
		if *sr.safetyScore < o.cfg.Safety.Threshold {
			if leadIndex == -1 || *sr.safetyScore < *results[leadIndex].safetyScore {
				leadIndex = sr.index
				lead = sr.text
			}
		}
	}

	var parts []string
	if lead != "" {
		parts = append(parts, "A safety note before anything else:\n"+lead)
	}
	for _, sr := range results {
		if sr == nil || sr.text == "" || sr.index == leadIndex {
			continue
		}
		parts = append(parts, sr.text)
	}

	var caveats []string
	for _, sr := range results {
		if sr != nil && sr.caveat != "" {
			caveats = append(caveats, sr.caveat)
		}
	}

	if len(parts) == 0 {
		if len(caveats) > 0 {
			return "I couldn't complete that right now: " + strings.Join(caveats, "; ") +
				". Please try again in a moment."
		}
		return "I'm not sure what you need yet - could you tell me a bit more about " +
			"what you'd like to do in Lagos?"
	}

	reply := strings.Join(parts, "\n\n")
	if len(caveats) > 0 {
		reply += "\n\nNote: " + strings.Join(caveats, "; ") + "."
	}
	return reply
}

// clarifyText phrases a clarification-class failure as a question back
// to the user.
func clarifyText(f *models.Failure) string {
	msg := strings.TrimSuffix(f.Message, ".")
	return fmt.Sprintf("Before I can do that, I need one thing from you: %s.", msg)
}

// renderDependencies formats earlier step outputs as context for a
// dependent delegation.
func renderDependencies(deps []int, prior []*stepResult) string {
	var b strings.Builder
	for _, dep := range deps {
		if dep < 0 || dep >= len(prior) || prior[dep] == nil || prior[dep].text == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", prior[dep].text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// summarizeToolPayload renders a raw tool payload as user-facing text
// for orchestrator-level tool calls.
func summarizeToolPayload(tool string, payload json.RawMessage) string {
	switch tool {
	case tools.ToolFindAttractions:
		var res tools.AttractionsResult
		if json.Unmarshal(payload, &res) != nil {
			break
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Top %s spots in %s (%s tier):\n", res.Category, res.Location, res.BudgetTier)
		for _, a := range res.Attractions {
			fmt.Fprintf(&b, "- %s (%.1f) - %s, %s. %s\n", a.Name, a.Rating, a.PriceBand, a.Hours, a.Tip)
		}
		return strings.TrimRight(b.String(), "\n")

	case tools.ToolAssessSafety:
		var res tools.SafetyResult
		if json.Unmarshal(payload, &res) != nil {
			break
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s safety at %s: %d/10 (%s).\n", res.Location, res.TimeOfDay, res.Score, res.Status)
		for _, alert := range res.Alerts {
			fmt.Fprintf(&b, "Alert: %s\n", alert)
		}
		for _, rec := range res.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		if police, ok := res.EmergencyContacts["police"]; ok {
			fmt.Fprintf(&b, "Emergency: police %s\n", police)
		}
		return strings.TrimRight(b.String(), "\n")

	case tools.ToolFindLodging:
		var res tools.LodgingResult
		if json.Unmarshal(payload, &res) != nil {
			break
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Lodging in %s (%s tier, %d nights from %s):\n",
			res.Location, res.BudgetTier, res.Nights, res.CheckinDate)
		for _, l := range res.Options {
			fmt.Fprintf(&b, "- %s (%.1f) - ₦%d/night, %s\n",
				l.Name, l.Rating, l.PricePerNight, strings.Join(l.Amenities, ", "))
		}
		fmt.Fprintf(&b, "Estimated total for the top pick: ₦%d\n", res.EstimatedTotal)
		return strings.TrimRight(b.String(), "\n")

	case tools.ToolGetLocalTips:
		var res tools.TipsResult
		if json.Unmarshal(payload, &res) != nil {
			break
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s tips:\n", capitalize(res.Category))
		for _, tip := range res.Tips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
		return strings.TrimRight(b.String(), "\n")

	case tools.ToolScheduleReminder:
		var res tools.ReminderResult
		if json.Unmarshal(payload, &res) != nil {
			break
		}
		return fmt.Sprintf("%s Your confirmation ID is %s.", res.Message, res.ReminderID)
	}

	return string(payload)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Package eval provides the golden-scenario evaluation harness: a
// fixed set of representative conversations, an LLM judge that scores
// responses against qualitative criteria, and a runner that gates
// releases on an aggregate score threshold.
package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dettyhq/detty/pkg/models"
)

// scenarioFile is the on-disk shape of a scenario set.
type scenarioFile struct {
	Cases []models.ScenarioCase `yaml:"cases"`
}

// LoadScenarios reads a scenario set from a YAML file. An empty path
// returns the built-in golden set.
func LoadScenarios(path string) ([]models.ScenarioCase, error) {
	if path == "" {
		return GoldenCases(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios: %w", err)
	}
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenarios: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("scenario file %s has no cases", path)
	}
	for i, c := range f.Cases {
		if c.ID == "" || len(c.Input) == 0 {
			return nil, fmt.Errorf("scenario %d: id and input are required", i)
		}
		if c.MinScore <= 0 {
			f.Cases[i].MinScore = 7.0
		}
	}
	return f.Cases, nil
}

// GoldenCases returns the built-in 15-case golden set. Callers get a
// fresh copy; the cases themselves never change between runs, which is
// what makes scores comparable over time.
func GoldenCases() []models.ScenarioCase {
	out := make([]models.ScenarioCase, len(goldenCases))
	copy(out, goldenCases)
	return out
}

var goldenCases = []models.ScenarioCase{
	{
		ID:   "TEST-001",
		Name: "First-time tourist, safety-focused",
		Input: []string{
			"I'm arriving in Lagos on Dec 1st for 3 days. This is my first time in Nigeria. I'm worried about safety. What areas should I stay in and avoid?",
		},
		ExpectedSignals: []string{
			"Greets warmly and acknowledges the safety concern",
			"Checks safety status for the key areas",
			"Recommends safe neighborhoods (VI, Lekki with caveats)",
			"Provides concrete safety tips",
			"Suggests budget-conscious safe hotels",
		},
		MinScore: 7.0,
	},
	{
		ID:   "TEST-002",
		Name: "Budget traveler, foodie",
		Input: []string{
			"I have ₦50,000 per day budget. I want to try authentic Lagos food. Where should I go? Any street food I should avoid?",
		},
		ExpectedSignals: []string{
			"Asks clarifying questions about dietary preferences",
			"Searches for budget food spots",
			"Provides local food tips with safety context",
			"Recommends markets and street vendors with ratings",
			"Suggests affordable restaurants under ₦10k",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-003",
		Name: "Luxury traveler, events",
		Input: []string{
			"I'm in Lagos Dec 15-25. Luxury budget. What high-end experiences and events are happening during Detty-December?",
		},
		ExpectedSignals: []string{
			"Searches luxury attractions and restaurants",
			"Mentions Detty-December events and festivals",
			"Recommends upscale venues (Landmark, Eko Hotels, clubs)",
			"Sets booking reminders for events",
			"Provides VIP concierge-level recommendations",
		},
		MinScore: 8.0,
	},
	{
		ID:   "TEST-004",
		Name: "Group travel, logistics",
		Input: []string{
			"We're 6 friends arriving together. We want an AirBnB in a safe area, good for nightlife. What's the best deal and safest way to move around at night?",
		},
		ExpectedSignals: []string{
			"Searches accommodations suitable for groups",
			"Recommends safe neighborhoods (Lekki, VI, Ikoyi)",
			"Provides safe transport tips (Uber, Bolt)",
			"Suggests group activities",
			"Sets collaborative booking reminders",
		},
		MinScore: 8.0,
	},
	{
		ID:   "TEST-005",
		Name: "Business traveler, networking",
		Input: []string{
			"I'm here Dec 10-15 for startup conferences. Where's best for coworking? How do I network in Lagos tech scene? Safe places to work late?",
		},
		ExpectedSignals: []string{
			"Routes the tech-hub question to the advisory specialist",
			"Recommends VI/Lekki tech spaces",
			"Gives safety tips for evening activities",
			"Suggests networking venues and events",
			"Provides emergency contacts for travelers",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-006",
		Name: "Safety emergency scenario",
		Input: []string{
			"I'm feeling unsafe in my current location (Surulere, late night). What should I do immediately? Where's safe?",
		},
		ExpectedSignals: []string{
			"Assesses safety immediately and leads with it",
			"Gives clear emergency action steps",
			"Provides emergency contacts (police 999, ambulance 112)",
			"Recommends immediate safe transport",
			"De-escalates and reassures",
		},
		MinScore: 9.0,
	},
	{
		ID:   "TEST-007",
		Name: "Detty-December specific",
		Input: []string{
			"What's this 'Detty-December' I keep hearing about? What should I experience?",
		},
		ExpectedSignals: []string{
			"Explains the Detty-December celebrations",
			"Pulls local tips for December events",
			"Recommends street parties and festivals",
			"Covers beach activities and community events",
			"Highlights cultural experiences unique to December",
		},
		MinScore: 8.0,
	},
	{
		ID:   "TEST-008",
		Name: "Cultural explorer",
		Input: []string{
			"I love history and art. What museums and cultural sites should I visit? Any local artists or galleries?",
		},
		ExpectedSignals: []string{
			"Searches attractions for museums (Nike Centre, etc)",
			"Provides cultural context about Lagos",
			"Recommends the local art scene",
			"Gives gallery opening times and locations",
			"Suggests cultural guides or tours",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-009",
		Name: "Transportation challenge",
		Input: []string{
			"What's the best way to get around Lagos? I'm nervous about driving. Uber/Bolt vs traditional transport?",
		},
		ExpectedSignals: []string{
			"Pulls local transport guidance",
			"Compares safety of transport modes",
			"Gives a cost comparison (Uber vs Bolt vs Danfo)",
			"Suggests best routes and times to travel",
			"Gives safety recommendations for each option",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-010",
		Name: "Holiday planning",
		Input: []string{
			"I want to celebrate Christmas/New Year in Lagos. What's the best experience? How early should I book?",
		},
		ExpectedSignals: []string{
			"Searches hotels and sets booking reminders",
			"Recommends December events",
			"Names New Year's party venues",
			"Stresses booking early given the demand",
			"Offers alternative low-cost celebrations",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-011",
		Name: "Multi-step complex request",
		Input: []string{
			"I arrive Dec 3rd, 7 days, moderate budget, love music and nightlife, but I'm solo and female. Create me an itinerary with safe venues, good hotels, and transport tips.",
		},
		ExpectedSignals: []string{
			"Asks clarifying questions about preferences",
			"Coordinates the advisory, safety, and booking specialists",
			"Creates a day-by-day itinerary",
			"Emphasizes safety throughout",
			"Recommends hotels and sets reminders",
			"Gives female-specific safety advice",
		},
		MinScore: 8.5,
	},
	{
		ID:   "TEST-012",
		Name: "Accessibility needs",
		Input: []string{
			"I use a wheelchair. Are venues in Lagos accessible? How do I get around safely?",
		},
		ExpectedSignals: []string{
			"Acknowledges the accessibility concern",
			"Assesses which venues have accessibility",
			"Recommends accessible transport",
			"Suggests accessibility-friendly hotels",
			"Gives practical navigation tips",
		},
		MinScore: 8.0,
	},
	{
		ID:   "TEST-013",
		Name: "Dietary and health concerns",
		Input: []string{
			"I'm vegetarian and gluten-free. What restaurants in Lagos can accommodate this? Any health risks I should know?",
		},
		ExpectedSignals: []string{
			"Searches restaurant recommendations",
			"Pulls food safety tips",
			"Identifies vegetarian-friendly spots",
			"Covers health and sanitation recommendations",
			"Gives market shopping tips for safe food",
		},
		MinScore: 7.5,
	},
	{
		ID:   "TEST-014",
		Name: "Budget emergency",
		Input: []string{
			"I lost my wallet and card. I'm stuck in Lagos. What do I do?",
		},
		ExpectedSignals: []string{
			"Gives immediate practical assistance",
			"Provides embassy/consulate contact info",
			"Explains money transfer options",
			"Names safe places to wait and rest",
			"Explains police report procedures",
		},
		MinScore: 8.5,
	},
	{
		ID:   "TEST-015",
		Name: "Follow-up personalization",
		Input: []string{
			"I absolutely love jollof rice, remember that for me.",
			"Remember I love jollof rice? Can you recommend the best places to try different regional variations?",
		},
		ExpectedSignals: []string{
			"Recalls the stated preference from memory",
			"Searches attractions for restaurants",
			"Provides a regional jollof rice guide",
			"Mentions competition or festival information",
			"Updates the preference memory",
		},
		MinScore: 7.0,
	},
}

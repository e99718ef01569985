package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dettyhq/detty/pkg/models"
)

// Tool names as registered. Handlers reference these in role cards.
const (
	ToolFindAttractions  = "findAttractions"
	ToolAssessSafety     = "assessSafety"
	ToolFindLodging      = "findLodging"
	ToolGetLocalTips     = "getLocalTips"
	ToolScheduleReminder = "scheduleReminder"
)

// TipCategories is the fixed category set for getLocalTips.
var TipCategories = []string{"transport", "food", "culture", "safety", "events"}

// NewLagosRegistry builds the full registry over the given dataset.
// A nil dataset uses the built-in data.
func NewLagosRegistry(ds *Dataset) *Registry {
	if ds == nil {
		ds = DefaultDataset()
	}
	r := NewRegistry()

	r.Register(Spec{
		Name:        ToolFindAttractions,
		Description: "Search ranked tourist attractions in a Lagos area by category and budget tier.",
		Args: []ArgSpec{
			{Name: "location", Type: ArgString, Required: true, Description: "Area in Lagos (e.g. Lekki, VI, Surulere, Ikoyi)"},
			{Name: "category", Type: ArgString, Required: true, Description: "Attraction type (e.g. beach, restaurant, shopping, nightlife, culture)"},
			{Name: "budgetTier", Type: ArgString, Required: true, Description: "Price range", Enum: []string{"budget", "moderate", "luxury"}},
		},
	}, findAttractions(ds))

	r.Register(Spec{
		Name:        ToolAssessSafety,
		Description: "Check the safety score, active alerts, and recommendations for a Lagos area.",
		Args: []ArgSpec{
			{Name: "location", Type: ArgString, Required: true, Description: "Area in Lagos"},
			{Name: "timeOfDay", Type: ArgString, Required: true, Description: "Time window to assess", Enum: []string{"day", "night"}},
		},
	}, assessSafety(ds))

	r.Register(Spec{
		Name:        ToolFindLodging,
		Description: "Search ranked lodging options with prices, ratings, and amenities.",
		Args: []ArgSpec{
			{Name: "location", Type: ArgString, Required: true, Description: "Area preference"},
			{Name: "budgetTier", Type: ArgString, Required: true, Description: "Price range", Enum: []string{"budget", "moderate", "luxury"}},
			{Name: "nights", Type: ArgInt, Required: true, Description: "Number of nights"},
			{Name: "checkinDate", Type: ArgString, Required: true, Description: "Check-in date (YYYY-MM-DD)"},
		},
	}, findLodging(ds))

	r.Register(Spec{
		Name:        ToolGetLocalTips,
		Description: "Get short actionable insider tips for visiting Lagos during Detty-December.",
		Args: []ArgSpec{
			{Name: "category", Type: ArgString, Required: true, Description: "Tip category", Enum: TipCategories},
		},
	}, getLocalTips(ds))

	r.Register(Spec{
		Name:        ToolScheduleReminder,
		Description: "Set a booking reminder for a confirmed activity or lodging choice.",
		Args: []ArgSpec{
			{Name: "location", Type: ArgString, Required: true, Description: "Where the activity is"},
			{Name: "activity", Type: ArgString, Required: true, Description: "What to book (hotel, restaurant, tour, event)"},
			{Name: "date", Type: ArgString, Required: true, Description: "Date of the activity (YYYY-MM-DD)"},
			{Name: "time", Type: ArgString, Required: true, Description: "Time of the activity (HH:MM)"},
			{Name: "userId", Type: ArgString, Required: true, Description: "User identity the reminder belongs to"},
		},
	}, scheduleReminder())

	return r
}

// AttractionsResult is the findAttractions payload.
type AttractionsResult struct {
	Location    string       `json:"location"`
	Category    string       `json:"category"`
	BudgetTier  string       `json:"budgetTier"`
	Count       int          `json:"count"`
	Attractions []Attraction `json:"attractions"`
}

func findAttractions(ds *Dataset) Func {
	return func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		location := args["location"].(string)
		category := args["category"].(string)
		budget := args["budgetTier"].(string)

		entries := ds.Attractions[attractionKey(location, category, budget)]
		if len(entries) == 0 {
			return nil, models.NewFailure(models.FailNotFound,
				fmt.Sprintf("no %s attractions in %s for the %s tier", category, location, budget))
		}

		ranked := make([]Attraction, len(entries))
		copy(ranked, entries)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rating > ranked[j].Rating })

		return marshalPayload(AttractionsResult{
			Location:    location,
			Category:    category,
			BudgetTier:  budget,
			Count:       len(ranked),
			Attractions: ranked,
		})
	}
}

// SafetyResult is the assessSafety payload. Every response carries the
// emergency contacts.
type SafetyResult struct {
	Location          string            `json:"location"`
	TimeOfDay         string            `json:"timeOfDay"`
	Score             int               `json:"score"`
	Status            string            `json:"status"`
	Alerts            []string          `json:"alerts"`
	Recommendations   []string          `json:"recommendations"`
	EmergencyContacts map[string]string `json:"emergencyContacts"`
}

func assessSafety(ds *Dataset) Func {
	return func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		location := args["location"].(string)
		timeOfDay := args["timeOfDay"].(string)

		info, known := ds.Safety[location]
		if !known {
			// Unknown areas get a conservative default rather than an
			// error: the original data source answers for any area.
			info = SafetyInfo{
				DayScore:   5,
				NightScore: 3,
				Alerts:     []string{"No recent data for this area; check latest local guidance"},
				Recommendations: []string{
					"Exercise caution and stay in well-lit, busy areas",
					"Use registered transport only",
				},
			}
		}

		score := info.DayScore
		if timeOfDay == "night" {
			score = info.NightScore
		}

		status := "avoid"
		switch {
		case score >= 7:
			status = "safe"
		case score >= 5:
			status = "caution"
		}

		return marshalPayload(SafetyResult{
			Location:          location,
			TimeOfDay:         timeOfDay,
			Score:             score,
			Status:            status,
			Alerts:            info.Alerts,
			Recommendations:   info.Recommendations,
			EmergencyContacts: ds.EmergencyContacts,
		})
	}
}

// LodgingResult is the findLodging payload.
type LodgingResult struct {
	Location       string    `json:"location"`
	BudgetTier     string    `json:"budgetTier"`
	CheckinDate    string    `json:"checkinDate"`
	Nights         int       `json:"nights"`
	Count          int       `json:"count"`
	Options        []Lodging `json:"options"`
	EstimatedTotal int       `json:"estimatedTotal"`
}

func findLodging(ds *Dataset) Func {
	return func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		location := args["location"].(string)
		budget := args["budgetTier"].(string)
		nights := args["nights"].(int)
		checkin := args["checkinDate"].(string)

		if nights <= 0 {
			return nil, models.NewFailure(models.FailInvalidArgument, "nights must be positive")
		}

		options := ds.Lodging[lodgingKey(location, budget)]
		if len(options) == 0 {
			return nil, models.NewFailure(models.FailNotFound,
				fmt.Sprintf("no %s lodging listed in %s", budget, location))
		}

		ranked := make([]Lodging, len(options))
		copy(ranked, options)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rating > ranked[j].Rating })

		return marshalPayload(LodgingResult{
			Location:       location,
			BudgetTier:     budget,
			CheckinDate:    checkin,
			Nights:         nights,
			Count:          len(ranked),
			Options:        ranked,
			EstimatedTotal: ranked[0].PricePerNight * nights,
		})
	}
}

// TipsResult is the getLocalTips payload.
type TipsResult struct {
	Category string   `json:"category"`
	Tips     []string `json:"tips"`
}

func getLocalTips(ds *Dataset) Func {
	return func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		category := args["category"].(string)
		tips := ds.Tips[category]
		if len(tips) == 0 {
			return nil, models.NewFailure(models.FailUnavailable,
				fmt.Sprintf("tip data for %q is unavailable", category))
		}
		if len(tips) > 5 {
			tips = tips[:5]
		}
		return marshalPayload(TipsResult{Category: category, Tips: tips})
	}
}

// ReminderResult is the scheduleReminder confirmation payload.
type ReminderResult struct {
	ReminderID string `json:"reminderId"`
	Activity   string `json:"activity"`
	Location   string `json:"location"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	UserID     string `json:"userId"`
	Message    string `json:"message"`
}

func scheduleReminder() Func {
	return func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		location := args["location"].(string)
		activity := args["activity"].(string)
		date := args["date"].(string)
		at := args["time"].(string)
		userID := args["userId"].(string)

		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, models.NewFailure(models.FailInvalidArgument,
				fmt.Sprintf("date %q is not YYYY-MM-DD", date))
		}

		return marshalPayload(ReminderResult{
			ReminderID: "REM-" + uuid.NewString(),
			Activity:   activity,
			Location:   location,
			Date:       date,
			Time:       at,
			UserID:     userID,
			Message:    fmt.Sprintf("Reminder set for %s at %s on %s at %s", activity, location, date, at),
		})
	}
}

func marshalPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, models.NewFailure(models.FailUnavailable, fmt.Sprintf("encode payload: %v", err))
	}
	return data, nil
}

package tools

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Dataset is the static Lagos reference data the tools consult. The
// built-in data ships with the binary; operators can override it with a
// YAML file of the same shape.
type Dataset struct {
	// Attractions keyed by "location/category/budget".
	Attractions map[string][]Attraction `yaml:"attractions"`
	// Safety keyed by location.
	Safety map[string]SafetyInfo `yaml:"safety"`
	// Lodging keyed by "location/budget".
	Lodging map[string][]Lodging `yaml:"lodging"`
	// Tips keyed by category.
	Tips map[string][]string `yaml:"tips"`
	// EmergencyContacts keyed by service name.
	EmergencyContacts map[string]string `yaml:"emergency_contacts"`
}

// Attraction is one ranked attraction entry.
type Attraction struct {
	Name      string  `yaml:"name" json:"name"`
	Rating    float64 `yaml:"rating" json:"rating"`
	PriceBand string  `yaml:"price_band" json:"priceBand"`
	Hours     string  `yaml:"hours" json:"hours"`
	Tip       string  `yaml:"tip" json:"tip"`
}

// SafetyInfo holds the per-location safety table.
type SafetyInfo struct {
	DayScore        int      `yaml:"day" json:"day"`
	NightScore      int      `yaml:"night" json:"night"`
	Alerts          []string `yaml:"alerts" json:"alerts"`
	Recommendations []string `yaml:"recommendations" json:"recommendations"`
}

// Lodging is one ranked lodging option.
type Lodging struct {
	Name          string   `yaml:"name" json:"name"`
	PricePerNight int      `yaml:"price_per_night" json:"pricePerNight"`
	Rating        float64  `yaml:"rating" json:"rating"`
	Amenities     []string `yaml:"amenities" json:"amenities"`
}

// LoadDataset reads a dataset override from a YAML file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds := &Dataset{}
	if err := yaml.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return ds, nil
}

// attractionKey builds the composite lookup key.
func attractionKey(location, category, budget string) string {
	return location + "/" + category + "/" + budget
}

// lodgingKey builds the composite lookup key.
func lodgingKey(location, budget string) string {
	return location + "/" + budget
}

// DefaultDataset returns the built-in Lagos reference data.
func DefaultDataset() *Dataset {
	return &Dataset{
		Attractions: map[string][]Attraction{
			attractionKey("Lekki", "beach", "budget"): {
				{Name: "Lekki Beach", Rating: 4.5, PriceBand: "free", Hours: "6AM-6PM", Tip: "Go early to avoid crowds"},
				{Name: "Elegushi Beach", Rating: 4.3, PriceBand: "₦500 entry", Hours: "6AM-7PM", Tip: "Busy on weekends"},
				{Name: "Oniru Private Beach", Rating: 4.2, PriceBand: "₦1000 entry", Hours: "7AM-7PM", Tip: "Quieter than Elegushi"},
				{Name: "Landmark Beach", Rating: 4.4, PriceBand: "₦2000 entry", Hours: "8AM-10PM", Tip: "Food stalls on site"},
				{Name: "Alpha Beach", Rating: 3.9, PriceBand: "free", Hours: "6AM-6PM", Tip: "Strong currents, swim close to shore"},
			},
			attractionKey("VI", "shopping", "moderate"): {
				{Name: "Landmark Towers", Rating: 4.7, PriceBand: "varies", Hours: "10AM-10PM", Tip: "Combine with the beach next door"},
				{Name: "City Mall", Rating: 4.5, PriceBand: "varies", Hours: "10AM-9PM", Tip: "Weekday mornings are calm"},
				{Name: "Mega Plaza", Rating: 4.2, PriceBand: "varies", Hours: "9AM-9PM", Tip: "Good electronics floor"},
				{Name: "Palms Shopping Mall", Rating: 4.4, PriceBand: "varies", Hours: "10AM-9PM", Tip: "Cinema upstairs"},
				{Name: "Eko Market", Rating: 4.0, PriceBand: "budget", Hours: "8AM-6PM", Tip: "Haggle for fabrics"},
			},
			attractionKey("Lekki", "restaurant", "moderate"): {
				{Name: "Craft", Rating: 4.6, PriceBand: "₦8000-₦20000", Hours: "12PM-11PM", Tip: "Continental menu, book ahead"},
				{Name: "Cote Cuisine", Rating: 4.5, PriceBand: "₦7000-₦15000", Hours: "12PM-10PM", Tip: "Best jollof on the island"},
				{Name: "Terra Kulture", Rating: 4.5, PriceBand: "₦5000-₦12000", Hours: "10AM-10PM", Tip: "Gallery and theatre in the same building"},
				{Name: "Nok by Alara", Rating: 4.7, PriceBand: "₦12000-₦25000", Hours: "12PM-11PM", Tip: "West African tasting menu"},
				{Name: "Danfo Bistro", Rating: 4.3, PriceBand: "₦6000-₦14000", Hours: "12PM-11PM", Tip: "Street-food classics, sit-down setting"},
			},
			attractionKey("VI", "nightlife", "luxury"): {
				{Name: "Shisha Lounge", Rating: 4.4, PriceBand: "₦10000 entry", Hours: "10PM-4AM", Tip: "Rooftop views"},
				{Name: "Club1 Lounge", Rating: 4.3, PriceBand: "₦15000 entry", Hours: "9PM-5AM", Tip: "Afrobeats nights Thursday-Saturday"},
				{Name: "Quilox", Rating: 4.5, PriceBand: "₦20000 entry", Hours: "10PM-5AM", Tip: "Reserve a table in December"},
				{Name: "Sailors Lounge", Rating: 4.2, PriceBand: "₦8000 entry", Hours: "5PM-2AM", Tip: "Waterfront deck"},
				{Name: "The Library VI", Rating: 4.3, PriceBand: "₦12000 entry", Hours: "8PM-4AM", Tip: "Quieter early in the week"},
			},
			attractionKey("Lekki", "culture", "moderate"): {
				{Name: "Nike Art Centre", Rating: 4.8, PriceBand: "free", Hours: "9AM-6PM", Tip: "Four floors of Nigerian art"},
				{Name: "Lekki Conservation Centre", Rating: 4.6, PriceBand: "₦3000 entry", Hours: "8AM-5PM", Tip: "Canopy walk closes at 4PM"},
				{Name: "Terra Kulture", Rating: 4.5, PriceBand: "varies", Hours: "10AM-10PM", Tip: "Check the theatre schedule"},
				{Name: "Alara Concept Store", Rating: 4.4, PriceBand: "varies", Hours: "10AM-7PM", Tip: "Design and fashion under one roof"},
				{Name: "Freedom Park Ferry", Rating: 4.1, PriceBand: "₦2000", Hours: "10AM-8PM", Tip: "Go for the evening concerts"},
			},
		},
		Safety: map[string]SafetyInfo{
			"Lekki": {
				DayScore: 8, NightScore: 6,
				Alerts: nil,
				Recommendations: []string{
					"Generally safe; avoid isolated areas at night",
					"Use registered ride-hailing after dark",
				},
			},
			"VI": {
				DayScore: 9, NightScore: 8,
				Alerts: nil,
				Recommendations: []string{
					"Safest area with good security presence",
					"Standard precautions with valuables",
				},
			},
			"Surulere": {
				DayScore: 6, NightScore: 4,
				Alerts: []string{"Avoid late-night walks"},
				Recommendations: []string{
					"Use registered taxis only",
					"Keep phones out of sight in traffic",
				},
			},
			"Ikoyi": {
				DayScore: 8, NightScore: 7,
				Alerts: nil,
				Recommendations: []string{
					"Safe with standard precautions",
				},
			},
		},
		Lodging: map[string][]Lodging{
			lodgingKey("Lekki", "moderate"): {
				{Name: "Lekki Palm Hotel", PricePerNight: 45000, Rating: 4.6, Amenities: []string{"WiFi", "Pool", "Restaurant"}},
				{Name: "Radisson Blu Lekki", PricePerNight: 65000, Rating: 4.8, Amenities: []string{"WiFi", "Pool", "Gym", "Restaurant"}},
				{Name: "Mulberry Suites", PricePerNight: 52000, Rating: 4.4, Amenities: []string{"WiFi", "Kitchenette", "Gym"}},
			},
			lodgingKey("VI", "luxury"): {
				{Name: "Eko Hotels & Suites", PricePerNight: 120000, Rating: 4.9, Amenities: []string{"WiFi", "Pool", "Gym", "Spa", "Restaurant"}},
				{Name: "InterContinental Lagos", PricePerNight: 150000, Rating: 4.9, Amenities: []string{"WiFi", "Pool", "Gym", "Spa", "Fine Dining"}},
				{Name: "The Wheatbaker", PricePerNight: 135000, Rating: 4.8, Amenities: []string{"WiFi", "Pool", "Spa", "Restaurant"}},
			},
			lodgingKey("VI", "moderate"): {
				{Name: "Bespoke Residences", PricePerNight: 70000, Rating: 4.5, Amenities: []string{"WiFi", "Gym", "Kitchenette"}},
				{Name: "Hotel Bon Voyage", PricePerNight: 60000, Rating: 4.3, Amenities: []string{"WiFi", "Restaurant", "Bar"}},
			},
		},
		Tips: map[string][]string{
			"transport": {
				"Use Uber or Bolt instead of street taxis; rides are tracked",
				"Traffic peaks 7-9AM and 4-7PM; plan around it",
				"Danfo minibuses are cheap but crowded; only for the adventurous",
				"Agree okada fares before you get on",
			},
			"food": {
				"Jollof competitions run all December; try different spots",
				"Suya is best at night from busy roadside grills",
				"Visit Lekki and Balogun markets for authentic Lagos food",
				"Drink bottled or filtered water only",
			},
			"culture": {
				"December festivals: Taste of Lagos, Lagos Street Festival",
				"Visit the Nike Art Centre and Lekki Conservation Centre",
				"Catch live Afrobeats; Lagos is the music capital",
			},
			"safety": {
				"Don't walk alone at night; use registered transport",
				"Keep valuables in the hotel safe and carry minimal cash",
				"Register with your embassy before arrival",
				"Carry travel insurance with medical coverage",
			},
			"events": {
				"Detty-December starts Dec 1; street parties every weekend",
				"Beach cleanups and community events run all month",
				"Shopping festivals with discounts in Lekki and VI",
			},
		},
		EmergencyContacts: map[string]string{
			"police":          "999",
			"ambulance":       "112",
			"tourism_hotline": "+234 700 000 0000",
		},
	}
}

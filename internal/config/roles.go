package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dettyhq/detty/pkg/models"
)

// RoleConfig holds the role card for a single delegate handler loaded
// from YAML.
type RoleConfig struct {
	// Role is the handler role name (advisory, safety, booking).
	Role string `mapstructure:"role"`
	// Instructions is the system prompt establishing the handler's
	// persona and obligations.
	Instructions string `mapstructure:"instructions"`
	// Tools lists the tool names this handler may invoke.
	Tools []string `mapstructure:"tools"`
	// MaxRounds caps the handler's reasoning/tool rounds per sub-task.
	MaxRounds int `mapstructure:"max_rounds"`
}

// RoleConfigs holds all delegate handler role cards.
type RoleConfigs struct {
	Advisory *RoleConfig
	Safety   *RoleConfig
	Booking  *RoleConfig
}

// Get returns the role card for the given handler role.
func (rc *RoleConfigs) Get(role models.HandlerRole) *RoleConfig {
	switch role {
	case models.RoleAdvisory:
		return rc.Advisory
	case models.RoleSafety:
		return rc.Safety
	case models.RoleBooking:
		return rc.Booking
	default:
		return nil
	}
}

// LoadRoleConfigs loads role cards from the configs/ directory. It
// looks for advisory.yaml, safety.yaml, and booking.yaml. An empty
// configsDir defaults to "configs".
func LoadRoleConfigs(configsDir string) (*RoleConfigs, error) {
	if configsDir == "" {
		configsDir = "configs"
	}

	roles := &RoleConfigs{}

	advisory, err := loadRoleConfig(filepath.Join(configsDir, "advisory.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load advisory role: %w", err)
	}
	roles.Advisory = advisory

	safety, err := loadRoleConfig(filepath.Join(configsDir, "safety.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load safety role: %w", err)
	}
	roles.Safety = safety

	booking, err := loadRoleConfig(filepath.Join(configsDir, "booking.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load booking role: %w", err)
	}
	roles.Booking = booking

	return roles, nil
}

// loadRoleConfig loads a single role card from a YAML file.
func loadRoleConfig(path string) (*RoleConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &RoleConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 4
	}
	return cfg, nil
}

// DefaultRoleConfigs returns hardcoded role cards, used when the YAML
// files are not available.
func DefaultRoleConfigs() *RoleConfigs {
	return &RoleConfigs{
		Advisory: &RoleConfig{
			Role: "advisory",
			Instructions: `You are a Lagos tourism advisor specializing in Detty-December.
Recommend attractions and local experiences matched to the visitor's
stated budget, interests, and constraints. Ground every recommendation
in tool results; never invent venues, prices, or hours. Keep answers
concrete: names, prices, opening hours, and one practical tip each. If
the request is missing a preference you need (budget tier, area, or
interest), ask for it instead of guessing. Leave lodging searches and
bookings to the booking assistant.`,
			Tools:     []string{"findAttractions", "getLocalTips"},
			MaxRounds: 4,
		},
		Safety: &RoleConfig{
			Role: "safety",
			Instructions: `You are a safety assessor for visitors to Lagos.
For every area mentioned, check its safety data for the relevant time
of day. Your answer must always state a numeric safety score from 1 to
10 and at least one concrete recommendation. Surface active alerts
verbatim and include emergency contacts when the score is low. Be
direct about risk without being alarmist; suggest safer alternatives
where they exist. When you pull local tips, use the safety category
only.`,
			Tools:     []string{"assessSafety", "getLocalTips"},
			MaxRounds: 4,
		},
		Booking: &RoleConfig{
			Role: "booking",
			Instructions: `You are a booking assistant for Lagos trips.
You act only on a concrete prior selection: a named venue, lodging
option, or activity the visitor has already chosen, with a date and
time. When those details are present, schedule the reminder and
confirm with the reminder ID. When any detail is missing, ask one
clarifying question listing exactly what you still need. Never invent
a selection on the visitor's behalf.`,
			Tools:     []string{"scheduleReminder", "findLodging"},
			MaxRounds: 4,
		},
	}
}

// Package config handles configuration loading for detty.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for detty.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Retries   RetriesConfig   `mapstructure:"retries"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Context   ContextConfig   `mapstructure:"context"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Eval      EvalConfig      `mapstructure:"eval"`
	Dataset   string          `mapstructure:"dataset"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RetriesConfig bounds the single-retry recovery policies.
type RetriesConfig struct {
	// Unavailable is the retry count for unavailable or not-found tool
	// failures.
	Unavailable int `mapstructure:"unavailable"`
	// Contract is the retry count for handler contract violations.
	Contract int `mapstructure:"contract"`
}

// SafetyConfig holds safety consolidation settings.
type SafetyConfig struct {
	// Threshold is the score (1-10) below which safety findings lead
	// the consolidated response.
	Threshold int `mapstructure:"threshold"`
}

// ContextConfig bounds the context snapshot built for reasoning calls.
type ContextConfig struct {
	// HistoryTurns is how many recent chat turns are included.
	HistoryTurns int `mapstructure:"history_turns"`
	// MemoryEntries is how many recent entries per memory bucket.
	MemoryEntries int `mapstructure:"memory_entries"`
}

// TimeoutsConfig holds per-stage timeout settings.
type TimeoutsConfig struct {
	Turn    time.Duration `mapstructure:"turn"`
	Tool    time.Duration `mapstructure:"tool"`
	Handler time.Duration `mapstructure:"handler"`
	Judge   time.Duration `mapstructure:"judge"`
}

// StorageConfig holds profile persistence settings.
type StorageConfig struct {
	// DBPath is the SQLite file for profiles. Empty uses the XDG
	// default.
	DBPath string `mapstructure:"db_path"`
	// InMemory keeps profiles in process memory only.
	InMemory bool `mapstructure:"in_memory"`
}

// EvalConfig holds evaluation harness settings.
type EvalConfig struct {
	// Threshold is the minimum passing aggregate score.
	Threshold float64 `mapstructure:"threshold"`
	// Scenarios is the path to the golden scenario YAML. Empty uses
	// the built-in set.
	Scenarios string `mapstructure:"scenarios"`
	// HistoryDB is the SQLite file recording past evaluation runs.
	HistoryDB string `mapstructure:"history_db"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.detty.yaml in current directory or parent)
// 3. User config (~/.config/detty/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("retries.unavailable", cfg.Retries.Unavailable)
	v.Set("retries.contract", cfg.Retries.Contract)
	v.Set("safety.threshold", cfg.Safety.Threshold)
	v.Set("context.history_turns", cfg.Context.HistoryTurns)
	v.Set("context.memory_entries", cfg.Context.MemoryEntries)
	v.Set("timeouts.turn", cfg.Timeouts.Turn.String())
	v.Set("timeouts.tool", cfg.Timeouts.Tool.String())
	v.Set("timeouts.handler", cfg.Timeouts.Handler.String())
	v.Set("timeouts.judge", cfg.Timeouts.Judge.String())
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("storage.in_memory", cfg.Storage.InMemory)
	v.Set("eval.threshold", cfg.Eval.Threshold)
	v.Set("eval.scenarios", cfg.Eval.Scenarios)
	v.Set("eval.history_db", cfg.Eval.HistoryDB)
	v.Set("dataset", cfg.Dataset)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if one
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("retries.unavailable", 1)
	v.SetDefault("retries.contract", 1)

	v.SetDefault("safety.threshold", 6)

	v.SetDefault("context.history_turns", 6)
	v.SetDefault("context.memory_entries", 5)

	v.SetDefault("timeouts.turn", "90s")
	v.SetDefault("timeouts.tool", "10s")
	v.SetDefault("timeouts.handler", "60s")
	v.SetDefault("timeouts.judge", "30s")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.in_memory", false)

	v.SetDefault("eval.threshold", 7.0)
	v.SetDefault("eval.scenarios", "")
	v.SetDefault("eval.history_db", "")

	v.SetDefault("dataset", "")
}

// getUserConfigDir returns the XDG config directory for detty.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "detty")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "detty")
	}
	return filepath.Join(home, ".config", "detty")
}

// findProjectConfig searches for .detty.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".detty.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Retries: RetriesConfig{Unavailable: 1, Contract: 1},
		Safety:  SafetyConfig{Threshold: 6},
		Context: ContextConfig{HistoryTurns: 6, MemoryEntries: 5},
		Timeouts: TimeoutsConfig{
			Turn:    90 * time.Second,
			Tool:    10 * time.Second,
			Handler: 60 * time.Second,
			Judge:   30 * time.Second,
		},
		Eval: EvalConfig{Threshold: 7.0},
	}
}

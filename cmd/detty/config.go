package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dettyhq/detty/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify detty configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/detty/config.yaml
Project-specific overrides can be placed in .detty.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("retries.unavailable: %d\n", cfg.Retries.Unavailable)
	fmt.Printf("retries.contract: %d\n", cfg.Retries.Contract)
	fmt.Printf("safety.threshold: %d\n", cfg.Safety.Threshold)
	fmt.Printf("context.history_turns: %d\n", cfg.Context.HistoryTurns)
	fmt.Printf("context.memory_entries: %d\n", cfg.Context.MemoryEntries)
	fmt.Printf("timeouts.turn: %s\n", cfg.Timeouts.Turn)
	fmt.Printf("timeouts.tool: %s\n", cfg.Timeouts.Tool)
	fmt.Printf("timeouts.handler: %s\n", cfg.Timeouts.Handler)
	fmt.Printf("timeouts.judge: %s\n", cfg.Timeouts.Judge)
	fmt.Printf("storage.db_path: %s\n", cfg.Storage.DBPath)
	fmt.Printf("storage.in_memory: %t\n", cfg.Storage.InMemory)
	fmt.Printf("eval.threshold: %.1f\n", cfg.Eval.Threshold)
	fmt.Printf("eval.scenarios: %s\n", cfg.Eval.Scenarios)
	fmt.Printf("eval.history_db: %s\n", cfg.Eval.HistoryDB)
	fmt.Printf("dataset: %s\n", cfg.Dataset)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "retries.unavailable":
		return strconv.Itoa(cfg.Retries.Unavailable), nil
	case "retries.contract":
		return strconv.Itoa(cfg.Retries.Contract), nil
	case "safety.threshold":
		return strconv.Itoa(cfg.Safety.Threshold), nil
	case "context.history_turns":
		return strconv.Itoa(cfg.Context.HistoryTurns), nil
	case "context.memory_entries":
		return strconv.Itoa(cfg.Context.MemoryEntries), nil
	case "timeouts.turn":
		return cfg.Timeouts.Turn.String(), nil
	case "timeouts.tool":
		return cfg.Timeouts.Tool.String(), nil
	case "timeouts.handler":
		return cfg.Timeouts.Handler.String(), nil
	case "timeouts.judge":
		return cfg.Timeouts.Judge.String(), nil
	case "storage.db_path":
		return cfg.Storage.DBPath, nil
	case "storage.in_memory":
		return strconv.FormatBool(cfg.Storage.InMemory), nil
	case "eval.threshold":
		return strconv.FormatFloat(cfg.Eval.Threshold, 'f', 1, 64), nil
	case "eval.scenarios":
		return cfg.Eval.Scenarios, nil
	case "eval.history_db":
		return cfg.Eval.HistoryDB, nil
	case "dataset":
		return cfg.Dataset, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "retries.unavailable":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retries.unavailable: %w", err)
		}
		cfg.Retries.Unavailable = n
	case "retries.contract":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retries.contract: %w", err)
		}
		cfg.Retries.Contract = n
	case "safety.threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for safety.threshold: %w", err)
		}
		if n < 1 || n > 10 {
			return fmt.Errorf("safety.threshold must be between 1 and 10")
		}
		cfg.Safety.Threshold = n
	case "context.history_turns":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for context.history_turns: %w", err)
		}
		cfg.Context.HistoryTurns = n
	case "context.memory_entries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for context.memory_entries: %w", err)
		}
		cfg.Context.MemoryEntries = n
	case "timeouts.turn":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.turn: %w", err)
		}
		cfg.Timeouts.Turn = d
	case "timeouts.tool":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.tool: %w", err)
		}
		cfg.Timeouts.Tool = d
	case "timeouts.handler":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.handler: %w", err)
		}
		cfg.Timeouts.Handler = d
	case "timeouts.judge":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.judge: %w", err)
		}
		cfg.Timeouts.Judge = d
	case "storage.db_path":
		cfg.Storage.DBPath = value
	case "storage.in_memory":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for storage.in_memory: %w", err)
		}
		cfg.Storage.InMemory = b
	case "eval.threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for eval.threshold: %w", err)
		}
		cfg.Eval.Threshold = f
	case "eval.scenarios":
		cfg.Eval.Scenarios = value
	case "eval.history_db":
		cfg.Eval.HistoryDB = value
	case "dataset":
		cfg.Dataset = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dettyhq/detty/pkg/models"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Safety.Threshold != 6 {
		t.Errorf("safety threshold = %d, want 6", cfg.Safety.Threshold)
	}
	if cfg.Retries.Unavailable != 1 || cfg.Retries.Contract != 1 {
		t.Errorf("retries = %+v, want single retry for both policies", cfg.Retries)
	}
	if cfg.Context.HistoryTurns != 6 || cfg.Context.MemoryEntries != 5 {
		t.Errorf("context = %+v", cfg.Context)
	}
	if cfg.Eval.Threshold != 7.0 {
		t.Errorf("eval threshold = %v, want 7.0", cfg.Eval.Threshold)
	}
	if cfg.Timeouts.Judge != 30*time.Second {
		t.Errorf("judge timeout = %v, want 30s", cfg.Timeouts.Judge)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Anthropic.Model = "opus"
	cfg.Safety.Threshold = 8
	cfg.Timeouts.Judge = 45 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.Anthropic.Model != "opus" {
		t.Errorf("model = %q, want opus", loaded.Anthropic.Model)
	}
	if loaded.Safety.Threshold != 8 {
		t.Errorf("safety threshold = %d, want 8", loaded.Safety.Threshold)
	}
	if loaded.Timeouts.Judge != 45*time.Second {
		t.Errorf("judge timeout = %v, want 45s", loaded.Timeouts.Judge)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
anthropic:
  api_key: test-key
safety:
  threshold: 8
timeouts:
  turn: 30s
storage:
  in_memory: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("api key = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Safety.Threshold != 8 {
		t.Errorf("safety threshold = %d, want 8 from file", cfg.Safety.Threshold)
	}
	if cfg.Timeouts.Turn != 30*time.Second {
		t.Errorf("turn timeout = %v, want 30s", cfg.Timeouts.Turn)
	}
	if !cfg.Storage.InMemory {
		t.Error("storage.in_memory not read")
	}
	// Unset keys keep their defaults.
	if cfg.Retries.Unavailable != 1 {
		t.Errorf("retries.unavailable = %d, want default 1", cfg.Retries.Unavailable)
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("DETTY_TEST_KEY", "expanded")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${DETTY_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Anthropic.APIKey != "expanded" {
		t.Errorf("api key = %q, want env expansion", cfg.Anthropic.APIKey)
	}
}

func TestDefaultRoleConfigs(t *testing.T) {
	roles := DefaultRoleConfigs()

	tests := []struct {
		role      models.HandlerRole
		wantTools []string
	}{
		{models.RoleAdvisory, []string{"findAttractions", "getLocalTips"}},
		{models.RoleSafety, []string{"assessSafety", "getLocalTips"}},
		{models.RoleBooking, []string{"scheduleReminder", "findLodging"}},
	}
	for _, tt := range tests {
		card := roles.Get(tt.role)
		if card == nil {
			t.Fatalf("Get(%s) = nil", tt.role)
		}
		if card.Instructions == "" {
			t.Errorf("%s: empty instructions", tt.role)
		}
		if card.MaxRounds <= 0 {
			t.Errorf("%s: MaxRounds = %d", tt.role, card.MaxRounds)
		}
		if len(card.Tools) != len(tt.wantTools) {
			t.Fatalf("%s: tools = %v, want %v", tt.role, card.Tools, tt.wantTools)
		}
		for i, tool := range tt.wantTools {
			if card.Tools[i] != tool {
				t.Errorf("%s: tools[%d] = %q, want %q", tt.role, i, card.Tools[i], tool)
			}
		}
	}

	if roles.Get(models.HandlerRole("chef")) != nil {
		t.Error("unknown role should return nil")
	}
}

func TestLoadRoleConfigs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, role string, tools []string) {
		content := "role: " + role + "\ninstructions: |\n  Test instructions.\ntools:\n"
		for _, tool := range tools {
			content += "  - " + tool + "\n"
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("advisory.yaml", "advisory", []string{"findAttractions"})
	write("safety.yaml", "safety", []string{"assessSafety"})
	write("booking.yaml", "booking", []string{"scheduleReminder"})

	roles, err := LoadRoleConfigs(dir)
	if err != nil {
		t.Fatalf("LoadRoleConfigs() error: %v", err)
	}
	if roles.Advisory.Role != "advisory" || len(roles.Advisory.Tools) != 1 {
		t.Errorf("advisory card = %+v", roles.Advisory)
	}
	// MaxRounds omitted in YAML falls back to the default.
	if roles.Safety.MaxRounds != 4 {
		t.Errorf("safety MaxRounds = %d, want default 4", roles.Safety.MaxRounds)
	}
}

func TestLoadRoleConfigsMissingFile(t *testing.T) {
	if _, err := LoadRoleConfigs(t.TempDir()); err == nil {
		t.Error("missing role files did not error")
	}
}

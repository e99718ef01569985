package main

import (
	"testing"

	"github.com/dettyhq/detty/internal/session"
)

func TestEvalAppUsesInMemoryStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	a, err := buildEvalApp()
	if err != nil {
		t.Fatalf("buildEvalApp() error: %v", err)
	}
	defer a.Close()

	// Eval replays throwaway per-case visitors; they must never land in
	// the real profile database.
	if _, ok := a.store.(*session.MemoryStore); !ok {
		t.Errorf("eval store = %T, want in-memory", a.store)
	}
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dettyhq/detty/pkg/models"
)

// storeFactories builds each Store implementation against a temp dir so
// the contract tests run over both.
func storeFactories(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestLoadGetOrCreate(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p, err := store.Load(ctx, "ada")
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if p.UserID != "ada" || p.SessionState != models.SessionActive {
				t.Errorf("fresh profile = %+v", p)
			}

			// Second load must return the same profile, not a second
			// fresh one.
			p.Preferences[models.PrefBudget] = "moderate"
			if err := store.Save(ctx, p); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
			again, err := store.Load(ctx, "ada")
			if err != nil {
				t.Fatalf("second Load() error: %v", err)
			}
			if again.Preferences[models.PrefBudget] != "moderate" {
				t.Error("second Load() did not observe the saved profile")
			}

			ids, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(ids) != 1 {
				t.Errorf("List() = %v, want exactly one user", ids)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p, _ := store.Load(ctx, "ada")
			p.Preferences[models.PrefInterests] = "beaches,nightlife"
			p.MemoryBank[models.BucketSaved] = []models.MemoryEntry{
				{Data: json.RawMessage(`{"name":"Quilox"}`), Timestamp: time.Now().UTC()},
			}
			p.ChatHistory = append(p.ChatHistory,
				models.Turn{Role: models.RoleUser, Content: "hi", Timestamp: time.Now().UTC()},
				models.Turn{Role: models.RoleAssistant, Content: "hello", Timestamp: time.Now().UTC()},
			)
			if err := store.Save(ctx, p); err != nil {
				t.Fatalf("Save() error: %v", err)
			}

			got, err := store.Load(ctx, "ada")
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if got.Preferences[models.PrefInterests] != "beaches,nightlife" {
				t.Error("preferences did not round-trip")
			}
			if len(got.MemoryBank[models.BucketSaved]) != 1 {
				t.Error("memory bank did not round-trip")
			}
			if len(got.ChatHistory) != 2 || got.ChatHistory[0].Content != "hi" {
				t.Error("chat history did not round-trip in order")
			}
		})
	}
}

func TestAppendHistoryPreservesOrder(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				err := store.AppendHistory(ctx, "ada",
					models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("u%d", i)},
					models.Turn{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
				)
				if err != nil {
					t.Fatalf("AppendHistory() error: %v", err)
				}
			}

			p, _ := store.Load(ctx, "ada")
			if len(p.ChatHistory) != 10 {
				t.Fatalf("history has %d turns, want 10", len(p.ChatHistory))
			}
			for i := 0; i < 5; i++ {
				if p.ChatHistory[2*i].Content != fmt.Sprintf("u%d", i) {
					t.Fatalf("turn %d out of order: %q", 2*i, p.ChatHistory[2*i].Content)
				}
			}
		})
	}
}

func TestAppendMemoryRejectsUnknownBucket(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			err := store.AppendMemory(context.Background(), "ada",
				models.MemoryBucket("secrets"), models.MemoryEntry{})
			f, ok := models.AsFailure(err)
			if !ok || f.Code != models.FailInvalidArgument {
				t.Errorf("unknown bucket error = %v, want invalid_argument", err)
			}
		})
	}
}

func TestSetState(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.SetState(ctx, "ada", models.SessionPaused); err != nil {
				t.Fatalf("SetState() error: %v", err)
			}
			p, _ := store.Load(ctx, "ada")
			if p.SessionState != models.SessionPaused {
				t.Errorf("state = %q, want paused", p.SessionState)
			}
			if err := store.SetState(ctx, "ada", models.SessionState("limbo")); err == nil {
				t.Error("invalid state transition did not error")
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.Load(ctx, "ada")
			if err := store.Delete(ctx, "ada"); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			ids, _ := store.List(ctx)
			if len(ids) != 0 {
				t.Errorf("List() after delete = %v, want empty", ids)
			}
		})
	}
}

func TestConcurrentAppendsSameUser(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 8
			const perWriter = 10

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						store.AppendMemory(ctx, "ada", models.BucketVisited, models.MemoryEntry{
							Data:      json.RawMessage(`{}`),
							Timestamp: time.Now().UTC(),
						})
					}
				}(w)
			}
			wg.Wait()

			p, err := store.Load(ctx, "ada")
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if got := len(p.MemoryBank[models.BucketVisited]); got != writers*perWriter {
				t.Errorf("visited has %d entries after concurrent appends, want %d", got, writers*perWriter)
			}
		})
	}
}

package models

import (
	"encoding/json"
	"time"
)

// SessionState represents the lifecycle state of a user session.
type SessionState string

const (
	// SessionActive indicates the session is in use.
	SessionActive SessionState = "active"
	// SessionPaused indicates the session is suspended.
	SessionPaused SessionState = "paused"
	// SessionCompleted indicates the session has ended.
	SessionCompleted SessionState = "completed"
)

// Valid returns true if the state is a known value.
func (s SessionState) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionCompleted:
		return true
	default:
		return false
	}
}

// PrefKey identifies a named user preference. The key set is fixed;
// values are free-form strings.
type PrefKey string

const (
	// PrefBudget is the spending tier: budget, moderate, or luxury.
	PrefBudget PrefKey = "budget"
	// PrefInterests is a comma-separated list of interest tags.
	PrefInterests PrefKey = "interests"
	// PrefDuration is the trip length in days.
	PrefDuration PrefKey = "duration"
	// PrefDietary lists dietary restrictions.
	PrefDietary PrefKey = "dietary_restrictions"
	// PrefMobility lists mobility concerns.
	PrefMobility PrefKey = "mobility_concerns"
)

// KnownPrefKeys lists every valid preference key.
var KnownPrefKeys = []PrefKey{PrefBudget, PrefInterests, PrefDuration, PrefDietary, PrefMobility}

// Valid returns true if the key is part of the fixed preference set.
func (k PrefKey) Valid() bool {
	for _, known := range KnownPrefKeys {
		if k == known {
			return true
		}
	}
	return false
}

// MemoryBucket identifies an ordered collection in the memory bank.
type MemoryBucket string

const (
	// BucketVisited holds places the user has visited.
	BucketVisited MemoryBucket = "visited"
	// BucketSaved holds items the user saved for later.
	BucketSaved MemoryBucket = "saved"
	// BucketBookings holds confirmed bookings and reminders.
	BucketBookings MemoryBucket = "bookings"
	// BucketAlerts holds safety alerts surfaced to the user.
	BucketAlerts MemoryBucket = "alerts"
)

// MemoryBuckets lists every valid bucket, in storage order.
var MemoryBuckets = []MemoryBucket{BucketVisited, BucketSaved, BucketBookings, BucketAlerts}

// Valid returns true if the bucket is a known value.
func (b MemoryBucket) Valid() bool {
	for _, known := range MemoryBuckets {
		if b == known {
			return true
		}
	}
	return false
}

// MemoryEntry is one immutable record in a memory bucket.
type MemoryEntry struct {
	// Data is the structured payload, stored as it was produced.
	Data json.RawMessage `json:"data"`
	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Role identifies the author of a chat turn.
type Role string

const (
	// RoleUser marks a turn written by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn written by the orchestrator.
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the chat history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile holds all persistent state for one user identity.
type UserProfile struct {
	// UserID is the stable unique key for this user.
	UserID string `json:"user_id"`
	// Preferences maps fixed preference keys to free-form values.
	Preferences map[PrefKey]string `json:"preferences"`
	// MemoryBank holds the ordered memory buckets.
	MemoryBank map[MemoryBucket][]MemoryEntry `json:"memory_bank"`
	// ChatHistory is the append-only conversation record. Its ordering
	// is the sole ordering guarantee; entries are never reordered or
	// deduplicated.
	ChatHistory []Turn `json:"chat_history"`
	// SessionState is the lifecycle state of the session.
	SessionState SessionState `json:"session_state"`
	// CreatedAt is when the profile was first created.
	CreatedAt time.Time `json:"created_at"`
}

// NewUserProfile creates a fresh profile for a user identity.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		Preferences:  make(map[PrefKey]string),
		MemoryBank:   make(map[MemoryBucket][]MemoryEntry),
		ChatHistory:  nil,
		SessionState: SessionActive,
		CreatedAt:    time.Now().UTC(),
	}
}

// Clone returns a deep copy of the profile. Stores hand out clones so
// callers cannot mutate shared state behind the store's back.
func (p *UserProfile) Clone() *UserProfile {
	out := &UserProfile{
		UserID:       p.UserID,
		Preferences:  make(map[PrefKey]string, len(p.Preferences)),
		MemoryBank:   make(map[MemoryBucket][]MemoryEntry, len(p.MemoryBank)),
		ChatHistory:  make([]Turn, len(p.ChatHistory)),
		SessionState: p.SessionState,
		CreatedAt:    p.CreatedAt,
	}
	for k, v := range p.Preferences {
		out.Preferences[k] = v
	}
	for bucket, entries := range p.MemoryBank {
		copied := make([]MemoryEntry, len(entries))
		copy(copied, entries)
		out.MemoryBank[bucket] = copied
	}
	copy(out.ChatHistory, p.ChatHistory)
	return out
}

// MergePreferences applies updates onto the profile. Unknown keys are
// ignored; empty values delete nothing (last write wins).
func (p *UserProfile) MergePreferences(updates map[PrefKey]string) {
	if p.Preferences == nil {
		p.Preferences = make(map[PrefKey]string)
	}
	for k, v := range updates {
		if k.Valid() {
			p.Preferences[k] = v
		}
	}
}

// RecentTurns returns the last n chat turns (all of them if fewer).
func (p *UserProfile) RecentTurns(n int) []Turn {
	if n <= 0 || len(p.ChatHistory) <= n {
		return p.ChatHistory
	}
	return p.ChatHistory[len(p.ChatHistory)-n:]
}

// RecentMemory returns the last n entries of each bucket, preserving
// bucket order. Used to build the context snapshot for reasoning calls.
func (p *UserProfile) RecentMemory(n int) map[MemoryBucket][]MemoryEntry {
	out := make(map[MemoryBucket][]MemoryEntry)
	for _, bucket := range MemoryBuckets {
		entries := p.MemoryBank[bucket]
		if len(entries) == 0 {
			continue
		}
		if n > 0 && len(entries) > n {
			entries = entries[len(entries)-n:]
		}
		copied := make([]MemoryEntry, len(entries))
		copy(copied, entries)
		out[bucket] = copied
	}
	return out
}

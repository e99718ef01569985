// Package session persists per-user conversation state: preferences,
// memory buckets, chat history, and session status. Stores serialize
// writes per user so concurrent turns for the same user cannot
// interleave read-modify-write cycles.
package session

import (
	"context"
	"sync"

	"github.com/dettyhq/detty/pkg/models"
)

// Store is the persistence contract for user profiles. Load is
// get-or-create: a first call for an unknown user returns a fresh
// profile, and the call is idempotent.
type Store interface {
	// Load returns the user's profile, creating an empty one on first
	// access. The returned profile is the caller's copy.
	Load(ctx context.Context, userID string) (*models.UserProfile, error)
	// Save persists the full profile, replacing any stored version.
	Save(ctx context.Context, profile *models.UserProfile) error
	// AppendHistory appends turns to the user's chat history.
	AppendHistory(ctx context.Context, userID string, turns ...models.Turn) error
	// AppendMemory appends one entry to the named memory bucket.
	AppendMemory(ctx context.Context, userID string, bucket models.MemoryBucket, entry models.MemoryEntry) error
	// SetState transitions the user's session state.
	SetState(ctx context.Context, userID string, state models.SessionState) error
	// List returns all known user IDs.
	List(ctx context.Context) ([]string, error)
	// Delete removes a user's profile entirely.
	Delete(ctx context.Context, userID string) error
	// Close releases any backing resources.
	Close() error
}

// userLocks hands out one mutex per user ID so read-modify-write
// cycles for the same user are serialized while different users
// proceed in parallel.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (u *userLocks) get(userID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	return l
}

// MemoryStore is an in-process Store used by tests, the evaluation
// harness, and ephemeral chat sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	perUser  *userLocks
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.UserProfile),
		perUser:  newUserLocks(),
	}
}

// Load returns a deep copy of the user's profile, creating it on
// first access.
func (s *MemoryStore) Load(ctx context.Context, userID string) (*models.UserProfile, error) {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = models.NewUserProfile(userID)
		s.profiles[userID] = p
	}
	return p.Clone(), nil
}

// Save stores a deep copy of the profile.
func (s *MemoryStore) Save(ctx context.Context, profile *models.UserProfile) error {
	lock := s.perUser.get(profile.UserID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile.Clone()
	return nil
}

// AppendHistory appends turns under the user's write lock.
func (s *MemoryStore) AppendHistory(ctx context.Context, userID string, turns ...models.Turn) error {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	p.ChatHistory = append(p.ChatHistory, turns...)
	return nil
}

// AppendMemory appends one memory entry under the user's write lock.
func (s *MemoryStore) AppendMemory(ctx context.Context, userID string, bucket models.MemoryBucket, entry models.MemoryEntry) error {
	if !bucket.Valid() {
		return models.NewFailure(models.FailInvalidArgument, "unknown memory bucket "+string(bucket))
	}
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	p.MemoryBank[bucket] = append(p.MemoryBank[bucket], entry)
	return nil
}

// SetState transitions the session state.
func (s *MemoryStore) SetState(ctx context.Context, userID string, state models.SessionState) error {
	if !state.Valid() {
		return models.NewFailure(models.FailInvalidArgument, "unknown session state "+string(state))
	}
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userID).SessionState = state
	return nil
}

// List returns all user IDs.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes the profile.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) getOrCreateLocked(userID string) *models.UserProfile {
	p, ok := s.profiles[userID]
	if !ok {
		p = models.NewUserProfile(userID)
		s.profiles[userID] = p
	}
	return p
}

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dettyhq/detty/pkg/models"
)

// SQLiteStore is a durable Store backed by a single SQLite file.
// WAL mode is enabled for concurrent reads; writes are serialized per
// user on top of the connection.
type SQLiteStore struct {
	conn    *sql.DB
	path    string
	perUser *userLocks
}

var _ Store = (*SQLiteStore)(nil)

// DefaultDBPath returns the XDG data path for the profile database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "detty", "profiles.db")
}

// OpenSQLite opens (creating if needed) the profile database at path
// and applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{
		conn:    conn,
		path:    path,
		perUser: newUserLocks(),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.conn.Close() }

const migrationV1Profiles = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	preferences TEXT NOT NULL DEFAULT '{}',
	memory_bank TEXT NOT NULL DEFAULT '{}',
	chat_history TEXT NOT NULL DEFAULT '[]',
	session_state TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// migrate applies pending schema migrations, tracked in schema_version.
func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Profiles},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Load returns the user's profile, inserting a fresh row on first
// access.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (*models.UserProfile, error) {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(ctx, userID)
}

func (s *SQLiteStore) loadLocked(ctx context.Context, userID string) (*models.UserProfile, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, preferences, memory_bank, chat_history, session_state, created_at
		FROM profiles WHERE user_id = ?
	`, userID)

	var (
		p          models.UserProfile
		prefs      string
		memoryBank string
		history    string
		createdAt  string
	)
	err := row.Scan(&p.UserID, &prefs, &memoryBank, &history, &p.SessionState, &createdAt)
	if err == sql.ErrNoRows {
		fresh := models.NewUserProfile(userID)
		if err := s.saveLocked(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(memoryBank), &p.MemoryBank); err != nil {
		return nil, fmt.Errorf("decode memory bank: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.ChatHistory); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	if p.Preferences == nil {
		p.Preferences = make(map[models.PrefKey]string)
	}
	if p.MemoryBank == nil {
		p.MemoryBank = make(map[models.MemoryBucket][]models.MemoryEntry)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// Save upserts the full profile row.
func (s *SQLiteStore) Save(ctx context.Context, profile *models.UserProfile) error {
	lock := s.perUser.get(profile.UserID)
	lock.Lock()
	defer lock.Unlock()
	return s.saveLocked(ctx, profile)
}

func (s *SQLiteStore) saveLocked(ctx context.Context, profile *models.UserProfile) error {
	prefs, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	memoryBank, err := json.Marshal(profile.MemoryBank)
	if err != nil {
		return fmt.Errorf("encode memory bank: %w", err)
	}
	history, err := json.Marshal(profile.ChatHistory)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	created := profile.CreatedAt.UTC().Format(time.RFC3339)

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO profiles (user_id, preferences, memory_bank, chat_history, session_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preferences = excluded.preferences,
			memory_bank = excluded.memory_bank,
			chat_history = excluded.chat_history,
			session_state = excluded.session_state,
			updated_at = excluded.updated_at
	`, profile.UserID, string(prefs), string(memoryBank), string(history), string(profile.SessionState), created, now)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// AppendHistory appends turns under the user's write lock.
func (s *SQLiteStore) AppendHistory(ctx context.Context, userID string, turns ...models.Turn) error {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}
	p.ChatHistory = append(p.ChatHistory, turns...)
	return s.saveLocked(ctx, p)
}

// AppendMemory appends one memory entry under the user's write lock.
func (s *SQLiteStore) AppendMemory(ctx context.Context, userID string, bucket models.MemoryBucket, entry models.MemoryEntry) error {
	if !bucket.Valid() {
		return models.NewFailure(models.FailInvalidArgument, "unknown memory bucket "+string(bucket))
	}
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}
	p.MemoryBank[bucket] = append(p.MemoryBank[bucket], entry)
	return s.saveLocked(ctx, p)
}

// SetState transitions the session state.
func (s *SQLiteStore) SetState(ctx context.Context, userID string, state models.SessionState) error {
	if !state.Valid() {
		return models.NewFailure(models.FailInvalidArgument, "unknown session state "+string(state))
	}
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}
	p.SessionState = state
	return s.saveLocked(ctx, p)
}

// List returns all stored user IDs.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT user_id FROM profiles ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the user's row.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	lock := s.perUser.get(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.conn.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

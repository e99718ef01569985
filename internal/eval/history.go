package eval

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded evaluation run.
type Run struct {
	ID        string
	RanAt     time.Time
	Total     int
	Passed    int
	Failed    int
	Aggregate float64
	Accepted  bool
	// Detail is the full per-case breakdown as JSON.
	Detail json.RawMessage
}

// HistoryStore records evaluation runs so score drift is visible
// across dataset and prompt changes.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (and if needed creates) the run-history
// database at the given path.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS eval_runs (
			id TEXT PRIMARY KEY,
			ran_at DATETIME,
			total INT,
			passed INT,
			failed INT,
			aggregate REAL,
			accepted INT,
			detail TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// RecordRun persists one run summary.
func (h *HistoryStore) RecordRun(summary *Summary) error {
	detail, err := json.Marshal(summary.Results)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	_, err = h.db.Exec(`
		INSERT INTO eval_runs (id, ran_at, total, passed, failed, aggregate, accepted, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), summary.RanAt, len(summary.Results), summary.PassCount,
		summary.FailCount, summary.Aggregate, summary.Passed, string(detail))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (h *HistoryStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(`
		SELECT id, ran_at, total, passed, failed, aggregate, accepted, detail
		FROM eval_runs
		ORDER BY ran_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var detail string
		if err := rows.Scan(&r.ID, &r.RanAt, &r.Total, &r.Passed, &r.Failed,
			&r.Aggregate, &r.Accepted, &detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Detail = json.RawMessage(detail)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves one run by ID.
func (h *HistoryStore) GetRun(id string) (*Run, error) {
	row := h.db.QueryRow(`
		SELECT id, ran_at, total, passed, failed, aggregate, accepted, detail
		FROM eval_runs
		WHERE id = ?
	`, id)

	var r Run
	var detail string
	err := row.Scan(&r.ID, &r.RanAt, &r.Total, &r.Passed, &r.Failed,
		&r.Aggregate, &r.Accepted, &detail)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Detail = json.RawMessage(detail)
	return &r, nil
}

// DeleteRun removes one run by ID.
func (h *HistoryStore) DeleteRun(id string) error {
	result, err := h.db.Exec(`DELETE FROM eval_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// Close closes the database connection.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

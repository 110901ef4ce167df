// Package store persists sync history in a local SQLite database.
//
// Every sync run — CLI, HTTP, MCP, or watcher — is recorded with its
// per-target outcomes, so `vibesync history` and the TUI can answer "when
// did this target last change, and who triggered it".
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config controls where the database lives.
type Config struct {
	// DataDir holds vibesync.db. Created on first use.
	DataDir string
}

// DefaultConfig returns the standard data directory, honoring
// VIBESYNC_DATA_DIR.
func DefaultConfig() Config {
	if dir := os.Getenv("VIBESYNC_DATA_DIR"); dir != "" {
		return Config{DataDir: dir}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{DataDir: ".vibesync-data"}
	}
	return Config{DataDir: filepath.Join(home, ".vibesync")}
}

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("sync run not found")

// Run is one recorded sync.
type Run struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Checksum  string `json:"checksum"`
	Trigger   string `json:"trigger"` // cli, http, mcp, watch
	SyncedBy  string `json:"synced_by"`
	StartedAt string `json:"started_at"`
	Copied    int    `json:"copied"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

// TargetOutcome is one target's result within a run.
type TargetOutcome struct {
	RunID  string `json:"run_id"`
	Target string `json:"target"`
	Path   string `json:"path"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// Stats summarizes the recorded history.
type Stats struct {
	TotalRuns   int            `json:"total_runs"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	FailedRuns  int            `json:"failed_runs"`
	ByTrigger   map[string]int `json:"by_trigger"`
	TargetsSeen []string       `json:"targets_seen"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the history database under cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "vibesync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		checksum    TEXT NOT NULL,
		triggered   TEXT NOT NULL,
		synced_by   TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		copied      INTEGER NOT NULL DEFAULT 0,
		unchanged   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_results (
		run_id  TEXT NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
		target  TEXT NOT NULL,
		path    TEXT NOT NULL,
		state   TEXT NOT NULL,
		error   TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON sync_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// RecordRun stores a run and its per-target outcomes in one transaction.
func (s *Store) RecordRun(run Run, outcomes []TargetOutcome) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt == "" {
		run.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sync_runs (id, source, checksum, triggered, synced_by, started_at, copied, unchanged, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Checksum, run.Trigger, run.SyncedBy, run.StartedAt,
		run.Copied, run.Unchanged, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, o := range outcomes {
		_, err = tx.Exec(`
			INSERT INTO sync_results (run_id, target, path, state, error)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, o.Target, o.Path, o.State, o.Error,
		)
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", o.Target, err)
		}
	}

	return tx.Commit()
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, source, checksum, triggered, synced_by, started_at, copied, unchanged, failed
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Checksum, &r.Trigger, &r.SyncedBy,
			&r.StartedAt, &r.Copied, &r.Unchanged, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT id, source, checksum, triggered, synced_by, started_at, copied, unchanged, failed
		FROM sync_runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Source, &r.Checksum, &r.Trigger, &r.SyncedBy,
			&r.StartedAt, &r.Copied, &r.Unchanged, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

// RunResults returns the per-target outcomes of a run.
func (s *Store) RunResults(runID string) ([]TargetOutcome, error) {
	rows, err := s.db.Query(`
		SELECT run_id, target, path, state, error
		FROM sync_results WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var outcomes []TargetOutcome
	for rows.Next() {
		var o TargetOutcome
		if err := rows.Scan(&o.RunID, &o.Target, &o.Path, &o.State, &o.Error); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Stats summarizes everything recorded so far.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByTrigger: map[string]int{}}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(MAX(started_at), '')
		FROM sync_runs`).Scan(&stats.TotalRuns, &stats.LastRunAt)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE failed > 0`).Scan(&stats.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("count failed runs: %w", err)
	}

	rows, err := s.db.Query(`SELECT triggered, COUNT(*) FROM sync_runs GROUP BY triggered`)
	if err != nil {
		return nil, fmt.Errorf("count triggers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trigger string
		var n int
		if err := rows.Scan(&trigger, &n); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		stats.ByTrigger[trigger] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	targetRows, err := s.db.Query(`SELECT DISTINCT target FROM sync_results ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("distinct targets: %w", err)
	}
	defer targetRows.Close()
	for targetRows.Next() {
		var name string
		if err := targetRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		stats.TargetsSeen = append(stats.TargetsSeen, name)
	}
	return stats, targetRows.Err()
}

// Package scriptstore provides SQLite persistence for strategy runs: the
// script that was played, how it stopped and the statistics it ended with.
package scriptstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MJE43/luckyloop/internal/scripting"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("scriptstore: run not found")

// Run is one strategy script played against one game session.
type Run struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	ScriptSource  string     `json:"scriptSource"`
	MaxRounds     int        `json:"maxRounds"`
	StartBalance  int        `json:"startBalance"`
	FinalBalance  *int       `json:"finalBalance,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	FinalState    string     `json:"finalState"`
	StopReason    string     `json:"stopReason"`
	Rounds        int        `json:"rounds"`
	Wins          int        `json:"wins"`
	Losses        int        `json:"losses"`
	Pushes        int        `json:"pushes"`
	Profit        int        `json:"profit"`
	Wagered       int        `json:"wagered"`
	HighestStreak int        `json:"highestStreak"`
	LowestStreak  int        `json:"lowestStreak"`
	LevelsCleared int        `json:"levelsCleared"`
}

// RunStats holds final stats for ending a run.
type RunStats struct {
	FinalBalance  int
	Rounds        int
	Wins          int
	Losses        int
	Pushes        int
	Profit        int
	Wagered       int
	HighestStreak int
	LowestStreak  int
	LevelsCleared int
}

// StatsFrom copies the engine's statistics.
func StatsFrom(s *scripting.Statistics) RunStats {
	if s == nil {
		return RunStats{}
	}
	return RunStats{
		FinalBalance:  s.Balance,
		Rounds:        s.Rounds,
		Wins:          s.Wins,
		Losses:        s.Losses,
		Pushes:        s.Pushes,
		Profit:        s.Profit,
		Wagered:       s.Wagered,
		HighestStreak: s.HighestStreak,
		LowestStreak:  s.LowestStreak,
		LevelsCleared: s.LevelsCleared,
	}
}

// Snapshot is a stored engine snapshot, taken when a run ends.
type Snapshot struct {
	ID        int64                    `json:"id"`
	RunID     string                   `json:"runId"`
	Round     int                      `json:"round"`
	State     scripting.EngineSnapshot `json:"state"`
	CreatedAt time.Time                `json:"createdAt"`
}

// Store provides SQLite persistence for strategy runs.
type Store struct {
	db *sql.DB
}

// New creates a new run store using the given SQLite database path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("scriptstore: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("scriptstore: enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing sql.DB.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate runs the strategy run migrations.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS strategy_runs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			script_source TEXT NOT NULL DEFAULT '',
			max_rounds INTEGER NOT NULL DEFAULT 0,
			start_balance INTEGER NOT NULL DEFAULT 0,
			final_balance INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			final_state TEXT NOT NULL DEFAULT 'running',
			stop_reason TEXT NOT NULL DEFAULT '',
			rounds INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			pushes INTEGER NOT NULL DEFAULT 0,
			profit INTEGER NOT NULL DEFAULT 0,
			wagered INTEGER NOT NULL DEFAULT 0,
			highest_streak INTEGER NOT NULL DEFAULT 0,
			lowest_streak INTEGER NOT NULL DEFAULT 0,
			levels_cleared INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_runs_session ON strategy_runs(session_id)`,
		`CREATE TABLE IF NOT EXISTS strategy_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			state_json TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES strategy_runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_snapshots_run ON strategy_snapshots(run_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("scriptstore: migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run and returns its ID.
func (s *Store) CreateRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO strategy_runs (id, session_id, script_source, max_rounds, start_balance, final_state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.ScriptSource, run.MaxRounds, run.StartBalance, "running",
	)
	if err != nil {
		return "", fmt.Errorf("scriptstore: create run: %w", err)
	}
	return run.ID, nil
}

// EndRun marks a run as ended with final stats.
func (s *Store) EndRun(id, finalState, stopReason string, stats RunStats) error {
	res, err := s.db.Exec(
		`UPDATE strategy_runs SET
			ended_at = ?, final_state = ?, stop_reason = ?, final_balance = ?,
			rounds = ?, wins = ?, losses = ?, pushes = ?,
			profit = ?, wagered = ?,
			highest_streak = ?, lowest_streak = ?, levels_cleared = ?
		 WHERE id = ?`,
		time.Now().UTC(), finalState, stopReason, stats.FinalBalance,
		stats.Rounds, stats.Wins, stats.Losses, stats.Pushes,
		stats.Profit, stats.Wagered,
		stats.HighestStreak, stats.LowestStreak, stats.LevelsCleared,
		id,
	)
	if err != nil {
		return fmt.Errorf("scriptstore: end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSnapshot saves the engine state of a run.
func (s *Store) InsertSnapshot(runID string, round int, state scripting.EngineSnapshot) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("scriptstore: marshal state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO strategy_snapshots (run_id, round, state_json) VALUES (?, ?, ?)`,
		runID, round, string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("scriptstore: insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshots returns a run's snapshots in the order they were taken.
func (s *Store) GetSnapshots(runID string) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, round, state_json, created_at
		 FROM strategy_snapshots WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: get snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			stateJSON string
		)
		if err := rows.Scan(&snap.ID, &snap.RunID, &snap.Round, &stateJSON, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scriptstore: scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &snap.State); err != nil {
			return nil, fmt.Errorf("scriptstore: decode snapshot %d: %w", snap.ID, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

const runColumns = `id, session_id, script_source, max_rounds, start_balance, final_balance,
	created_at, ended_at, final_state, stop_reason, rounds, wins, losses, pushes,
	profit, wagered, highest_streak, lowest_streak, levels_cleared`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	err := sc.Scan(
		&run.ID, &run.SessionID, &run.ScriptSource, &run.MaxRounds, &run.StartBalance, &run.FinalBalance,
		&run.CreatedAt, &run.EndedAt, &run.FinalState, &run.StopReason, &run.Rounds, &run.Wins,
		&run.Losses, &run.Pushes, &run.Profit, &run.Wagered, &run.HighestStreak, &run.LowestStreak,
		&run.LevelsCleared,
	)
	return run, err
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM strategy_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scriptstore: get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs ordered by creation date (newest first). A
// non-empty sessionID narrows the list to one game session.
func (s *Store) ListRuns(sessionID string, limit, offset int) ([]Run, int, error) {
	if limit <= 0 {
		limit = 20
	}

	where, args := "", []any{}
	if sessionID != "" {
		where, args = " WHERE session_id = ?", append(args, sessionID)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM strategy_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("scriptstore: count runs: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM strategy_runs`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scriptstore: list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scriptstore: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// DeleteRun removes a run and its snapshots.
func (s *Store) DeleteRun(id string) error {
	// Foreign keys with CASCADE handle snapshots
	res, err := s.db.Exec("DELETE FROM strategy_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("scriptstore: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

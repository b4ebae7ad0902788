package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			client_seed TEXT NOT NULL DEFAULT '',
			server_seed_hash TEXT NOT NULL DEFAULT '',
			start_balance INTEGER NOT NULL DEFAULT 0,
			final_balance INTEGER NOT NULL DEFAULT 0,
			final_level INTEGER NOT NULL DEFAULT 1,
			round_count INTEGER NOT NULL DEFAULT 0,
			game_over INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			level INTEGER NOT NULL,
			skill TEXT NOT NULL DEFAULT '',
			encounter TEXT NOT NULL DEFAULT '',
			player_value INTEGER NOT NULL,
			dealer_value INTEGER NOT NULL,
			result TEXT NOT NULL,
			bet INTEGER NOT NULL DEFAULT 0,
			reward INTEGER NOT NULL,
			balance INTEGER NOT NULL,
			persistent_skills TEXT NOT NULL DEFAULT '',
			cards TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, round)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveSession saves a session to the database
func (s *SQLiteDB) SaveSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.FinalLevel == 0 {
		sess.FinalLevel = 1
	}
	if sess.FinalBalance == 0 {
		sess.FinalBalance = sess.StartBalance
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (
		id, client_seed, server_seed_hash, start_balance, final_balance, final_level
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`,
		sess.ID, sess.ClientSeed, sess.ServerSeedHash, sess.StartBalance, sess.FinalBalance, sess.FinalLevel,
	)
	return err
}

// SaveRounds saves multiple rounds to the database
func (s *SQLiteDB) SaveRounds(ctx context.Context, sessionID string, rounds []Round) error {
	if len(rounds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rounds (
		session_id, round, level, skill, encounter, player_value, dealer_value,
		result, bet, reward, balance, persistent_skills, cards, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rounds {
		_, err := stmt.ExecContext(ctx,
			sessionID, r.Round, r.Level, r.Skill, r.Encounter, r.PlayerValue, r.DealerValue,
			r.Result, r.Bet, r.Reward, r.Balance, r.PersistentSkills, cardsOrEmpty(r.Cards), r.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert round %d: %w", r.Round, err)
		}
	}

	last := rounds[len(rounds)-1]
	_, err = tx.ExecContext(ctx, `UPDATE sessions
		SET final_balance = ?, final_level = ?, round_count = round_count + ?
		WHERE id = ?`,
		last.Balance, last.Level, len(rounds), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}

	return tx.Commit()
}

// EndSession stamps the end time and terminal state of a session
func (s *SQLiteDB) EndSession(ctx context.Context, id string, gameOver bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP, game_over = ? WHERE id = ?`,
		boolToInt(gameOver), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionColumns = `id, client_seed, server_seed_hash, start_balance, final_balance,
	final_level, round_count, game_over, created_at, ended_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var gameOver int
	var endedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.ClientSeed, &sess.ServerSeedHash, &sess.StartBalance, &sess.FinalBalance,
		&sess.FinalLevel, &sess.RoundCount, &gameOver, &sess.CreatedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}
	sess.GameOver = gameOver == 1
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}

// GetSession retrieves a session by ID
func (s *SQLiteDB) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// ListSessions retrieves sessions with pagination and filtering
func (s *SQLiteDB) ListSessions(ctx context.Context, query SessionsQuery) (*SessionsList, error) {
	whereClause := ""
	args := []any{}

	if query.GameOver != nil {
		whereClause = "WHERE game_over = ?"
		args = append(args, boolToInt(*query.GameOver))
	}

	var totalCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(query.Page, query.PerPage, defaultSessionsPerPage, totalCount)

	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions `+whereClause+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return &SessionsList{
		Sessions:   sessions,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// GetSessionRounds retrieves rounds for a session with server-side pagination
func (s *SQLiteDB) GetSessionRounds(ctx context.Context, sessionID string, page, perPage int) (*RoundsPage, error) {
	var totalCount int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rounds WHERE session_id = ?", sessionID).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get rounds count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(page, perPage, defaultRoundsPerPage, totalCount)

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, session_id, round, level, skill, encounter, player_value, dealer_value,
		result, bet, reward, balance, persistent_skills, cards, created_at
		FROM rounds WHERE session_id = ?
		ORDER BY round, id
		LIMIT ? OFFSET ?`, sessionID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []Round{}
	for rows.Next() {
		var r Round
		err := rows.Scan(
			&r.ID, &r.SessionID, &r.Round, &r.Level, &r.Skill, &r.Encounter, &r.PlayerValue, &r.DealerValue,
			&r.Result, &r.Bet, &r.Reward, &r.Balance, &r.PersistentSkills, &r.Cards, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return &RoundsPage{
		Rounds:     rounds,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cardsOrEmpty(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

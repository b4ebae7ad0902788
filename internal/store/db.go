package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: not found")

// DB represents the database interface
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	// SaveSession inserts a session row. Saving an id that already exists is
	// a no-op.
	SaveSession(ctx context.Context, sess *Session) error
	// SaveRounds appends rounds and rolls the session's progress columns
	// forward to the last of them.
	SaveRounds(ctx context.Context, sessionID string, rounds []Round) error
	EndSession(ctx context.Context, id string, gameOver bool) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, query SessionsQuery) (*SessionsList, error)
	GetSessionRounds(ctx context.Context, sessionID string, page, perPage int) (*RoundsPage, error)
}

// Session is one played run, from creation until game over or exit.
type Session struct {
	ID             string     `json:"id"`
	ClientSeed     string     `json:"client_seed"`
	ServerSeedHash string     `json:"server_seed_hash"`
	StartBalance   int        `json:"start_balance"`
	FinalBalance   int        `json:"final_balance"`
	FinalLevel     int        `json:"final_level"`
	RoundCount     int        `json:"round_count"`
	GameOver       bool       `json:"game_over"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Round is one resolved round.
type Round struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	Round            int       `json:"round"`
	Level            int       `json:"level"`
	Skill            string    `json:"skill"`
	Encounter        string    `json:"encounter"`
	PlayerValue      int       `json:"player_value"`
	DealerValue      int       `json:"dealer_value"`
	Result           string    `json:"result"`
	Bet              int       `json:"bet"`
	Reward           int       `json:"reward"`
	Balance          int       `json:"balance"`
	PersistentSkills string    `json:"persistent_skills"`
	Cards            string    `json:"cards"` // JSON {"player": [...], "dealer": [...]}
	CreatedAt        time.Time `json:"created_at"`
}

// SessionsQuery represents query parameters for listing sessions
type SessionsQuery struct {
	GameOver *bool `json:"game_over,omitempty"`
	Page     int   `json:"page"`
	PerPage  int   `json:"perPage"`
}

// SessionsList represents paginated sessions response
type SessionsList struct {
	Sessions   []Session `json:"sessions"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalPages int       `json:"totalPages"`
}

// RoundsPage represents paginated rounds response
type RoundsPage struct {
	Rounds     []Round `json:"rounds"`
	TotalCount int     `json:"totalCount"`
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	TotalPages int     `json:"totalPages"`
}

const (
	defaultSessionsPerPage = 50
	defaultRoundsPerPage   = 100
)

// paginate normalizes page/perPage and returns the row offset and page count.
func paginate(page, perPage, defaultPerPage, total int) (int, int, int, int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	return page, perPage, (page - 1) * perPage, totalPages
}

// Open connects to the history store named by driver ("sqlite" or
// "postgres") and migrates it. Driver "none" or "" returns a nil DB.
func Open(ctx context.Context, driver, path, dsn string) (DB, error) {
	var (
		db  DB
		err error
	)
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		db, err = NewSQLiteDB(path)
	case "postgres":
		if dsn == "" {
			return nil, errors.New("store: postgres driver needs a database URL")
		}
		db, err = NewPostgresDB(ctx, dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

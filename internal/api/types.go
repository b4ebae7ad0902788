package api

import (
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/scripting"
	"github.com/MJE43/luckyloop/internal/scriptstore"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"
	ErrTypeUnknownSkill  = "unknown_skill"

	// Session errors
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeRunNotFound     = "run_not_found"
	ErrTypeScript          = "script_error"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeRateLimit          = "rate_limit_exceeded"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation, ErrTypeUnknownSkill:
		return CategoryValidation
	case ErrTypeSessionNotFound, ErrTypeRunNotFound, ErrTypeScript:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// CreateSessionRequest opens a new session. Zero fields take the server's
// configured values.
type CreateSessionRequest struct {
	StartingBalance int      `json:"starting_balance,omitempty"`
	SafetyNetMode   string   `json:"safety_net_mode,omitempty"`
	ServerSeed      string   `json:"server_seed,omitempty"`
	ClientSeed      string   `json:"client_seed,omitempty"`
	PersistedSkills []string `json:"persisted_skills,omitempty"`
}

// BetRequest moves the bet by Delta.
type BetRequest struct {
	Delta int `json:"delta"`
}

// SkillRequest fills the pending skill slot; an empty id plays without one.
type SkillRequest struct {
	SkillID string `json:"skill_id"`
}

// RestartRequest starts the session over.
type RestartRequest struct {
	KeepSkills bool `json:"keep_skills"`
}

// AutoplayRequest runs a strategy script for up to Rounds rounds. An empty
// script plays hit-below-17.
type AutoplayRequest struct {
	Script string `json:"script,omitempty"`
	Rounds int    `json:"rounds"`
}

// AutoplayResponse reports a finished strategy run.
type AutoplayResponse struct {
	RunID  string                   `json:"run_id,omitempty"`
	Engine scripting.EngineSnapshot `json:"engine"`
	Logs   []scripting.LogEntry     `json:"logs"`
	State  game.Snapshot            `json:"state"`
}

// RunsResponse lists stored strategy runs.
type RunsResponse struct {
	Runs       []scriptstore.Run `json:"runs"`
	TotalCount int               `json:"totalCount"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// RunResponse is one stored run with its engine snapshots.
type RunResponse struct {
	Run       *scriptstore.Run       `json:"run"`
	Snapshots []scriptstore.Snapshot `json:"snapshots"`
}

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	State         game.Snapshot `json:"state"`
	EngineVersion string        `json:"engine_version"`
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/roundlog"
	"github.com/MJE43/luckyloop/internal/scripting"
	"github.com/MJE43/luckyloop/internal/store"
)

const (
	maxAutoplayRounds = 1000
	maxRoundsPerPage  = 1000
	csvPageSize       = 500
)

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}
	if req.StartingBalance < 0 {
		s.errorHandler.HandleValidationError(w, r, "starting_balance", "must not be negative")
		return
	}
	switch game.SafetyNetMode(req.SafetyNetMode) {
	case "", game.SafetyNetEveryRound, game.SafetyNetOncePerLevel:
	default:
		s.errorHandler.HandleValidationError(w, r, "safety_net_mode", "must be every_round or once_per_level")
		return
	}

	cfg, err := s.newConfig()
	if err != nil {
		s.errorHandler.HandleError(w, r, fmt.Errorf("session config: %w", err))
		return
	}
	if req.StartingBalance > 0 {
		cfg.StartingBalance = req.StartingBalance
	}
	if req.SafetyNetMode != "" {
		cfg.SafetyNetMode = game.SafetyNetMode(req.SafetyNetMode)
	}
	if req.ServerSeed != "" || req.ClientSeed != "" {
		cfg.Seeds = engine.Seeds{Server: req.ServerSeed, Client: req.ClientSeed}
		cfg.Source = nil
	}
	if req.PersistedSkills != nil {
		cfg.PersistedSkills = req.PersistedSkills
	}
	cfg.Recorder = s.recorder

	sess, err := game.NewSession(cfg)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	h, ok := s.sessions.add(sess)
	if !ok {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeRateLimit, "too many live sessions").
			WithRequestID(middleware.GetReqID(r.Context())).
			Build())
		return
	}

	snap := h.Snapshot()
	s.saveSession(r.Context(), snap)
	s.writeJSON(w, http.StatusCreated, SessionResponse{State: snap, EngineVersion: EngineVersion})
}

// GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	query := store.SessionsQuery{
		Page:    qInt(r, "page", 1),
		PerPage: clampInt(qInt(r, "per_page", 50), 1, maxRoundsPerPage),
	}
	if v := r.URL.Query().Get("game_over"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.errorHandler.HandleValidationError(w, r, "game_over", "must be a boolean")
			return
		}
		query.GameOver = &b
	}
	list, err := s.db.ListSessions(r.Context(), query)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{State: h.Snapshot(), EngineVersion: EngineVersion})
}

// DELETE /api/v1/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.sessions.get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	snap := h.Snapshot()
	if err := s.sessions.remove(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if !snap.GameOver {
		s.endSession(r.Context(), snap.SessionID, false)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAction applies a no-argument table action. Ignored actions are not
// errors: the update says why.
func (s *Server) handleAction(action func(*handle) game.Update) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := s.sessions.get(chi.URLParam(r, "id"))
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		s.writeUpdate(w, r, action(h))
	}
}

// POST /api/v1/sessions/{id}/bet
func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req BetRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}
	if req.Delta == 0 {
		s.errorHandler.HandleValidationError(w, r, "delta", "must not be zero")
		return
	}
	s.writeUpdate(w, r, h.AdjustBet(req.Delta))
}

// POST /api/v1/sessions/{id}/skill
func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req SkillRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}
	u, err := h.ChooseSkill(req.SkillID)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeUpdate(w, r, u)
}

// POST /api/v1/sessions/{id}/restart
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req RestartRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}

	prev := h.Snapshot()
	u := h.Restart(req.KeepSkills)
	s.sessions.alias(u.State.SessionID, h)
	if !prev.GameOver {
		s.endSession(r.Context(), prev.SessionID, false)
	}
	s.saveSession(r.Context(), u.State)
	s.writeJSON(w, http.StatusOK, u)
}

// POST /api/v1/sessions/{id}/autoplay
func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.sessions.get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req AutoplayRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}
	if req.Rounds <= 0 {
		req.Rounds = 1
	}
	if req.Rounds > maxAutoplayRounds {
		s.errorHandler.HandleValidationError(w, r, "rounds", fmt.Sprintf("must be at most %d", maxAutoplayRounds))
		return
	}

	eng := scripting.NewEngine(h, nil)
	play := func() (scripting.EngineSnapshot, error) { return eng.Run(r.Context(), req.Script, req.Rounds) }

	var (
		runID string
		snap  scripting.EngineSnapshot
	)
	before := h.Snapshot()
	if s.runs != nil {
		runID, snap, err = s.runs.Track(before.SessionID, req.Script, req.Rounds, before.Balance, play)
	} else {
		snap, err = play()
	}
	if err != nil {
		s.errorHandler.HandleScriptError(w, r, id, err)
		return
	}

	state := h.Snapshot()
	if state.GameOver {
		s.endSession(r.Context(), state.SessionID, true)
	}
	s.writeJSON(w, http.StatusOK, AutoplayResponse{RunID: runID, Engine: snap, Logs: eng.GetLogs(), State: state})
}

// GET /api/v1/sessions/{id}/rounds
func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetSession(r.Context(), id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	page, err := s.db.GetSessionRounds(r.Context(), id,
		qInt(r, "page", 1), clampInt(qInt(r, "per_page", 100), 1, maxRoundsPerPage))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// GET /api/v1/sessions/{id}/rounds.csv
func (s *Server) handleRoundsCSV(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetSession(r.Context(), id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	var rows []roundlog.Row
	for page := 1; ; page++ {
		p, err := s.db.GetSessionRounds(r.Context(), id, page, csvPageSize)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		for _, rd := range p.Rounds {
			rows = append(rows, roundlog.Row{
				Round:            rd.Round,
				Level:            rd.Level,
				Skill:            rd.Skill,
				Encounter:        rd.Encounter,
				PlayerValue:      rd.PlayerValue,
				DealerValue:      rd.DealerValue,
				Result:           rd.Result,
				Reward:           rd.Reward,
				Balance:          rd.Balance,
				PersistentSkills: rd.PersistentSkills,
			})
		}
		if page >= p.TotalPages {
			break
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="session_%s_rounds.csv"`, id))
	if err := roundlog.Write(w, rows); err != nil {
		s.logger.Printf("write rounds csv for session %s: %v", id, err)
	}
}

// writeUpdate answers an action and closes the stored session on game over.
func (s *Server) writeUpdate(w http.ResponseWriter, r *http.Request, u game.Update) {
	for _, ev := range u.Events {
		if ev.Kind == game.EventGameOver {
			s.endSession(r.Context(), u.State.SessionID, true)
			break
		}
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if s.db != nil {
		return true
	}
	s.errorHandler.HandleError(w, r, NewError(ErrTypeServiceUnavailable, "history store is disabled").
		WithRequestID(middleware.GetReqID(r.Context())).
		Build())
	return false
}

// saveSession stores the session row. Failures are logged: history is not
// allowed to block play.
func (s *Server) saveSession(ctx context.Context, snap game.Snapshot) {
	if s.db == nil {
		return
	}
	err := s.db.SaveSession(ctx, &store.Session{
		ID:             snap.SessionID,
		ClientSeed:     snap.ClientSeed,
		ServerSeedHash: snap.ServerSeedHash,
		StartBalance:   snap.Balance,
	})
	if err != nil {
		s.logger.Printf("save session %s: %v", snap.SessionID, err)
	}
}

func (s *Server) endSession(ctx context.Context, id string, gameOver bool) {
	if s.db == nil {
		return
	}
	if err := s.db.EndSession(ctx, id, gameOver); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("end session %s: %v", id, err)
	}
}

func qInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/roundlog"
	"github.com/MJE43/luckyloop/internal/rules"
	"github.com/MJE43/luckyloop/internal/scriptstore"
	"github.com/MJE43/luckyloop/internal/store"
)

// winningConfig deals player 10,9 against dealer 7 (hole), 10 every round,
// so standing always wins 19 to 17.
func winningConfig() (game.Config, error) {
	cat := rules.Default()
	cat.EncounterChance = 0
	return game.Config{
		Catalog: cat,
		ShoeFactory: func(decks int, src engine.Source) *cards.Shoe {
			return cards.NewStackedShoe(decks, src,
				cards.NewCard("10", "spades"), cards.NewCard("9", "hearts"),
				cards.NewCard("7", "clubs"), cards.NewCard("10", "diamonds"))
		},
	}, nil
}

type testEnv struct {
	handler  http.Handler
	db       store.DB
	recorder *store.Recorder
}

func newTestEnv(t *testing.T, withDB bool) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	env := &testEnv{}
	opts := Options{NewConfig: winningConfig, Logger: logger}
	if withDB {
		db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "api.db"))
		if err != nil {
			t.Fatalf("NewSQLiteDB: %v", err)
		}
		if err := db.Migrate(t.Context()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		env.db = db
		env.recorder = store.NewRecorder(db, 1, logger)
		t.Cleanup(func() {
			env.recorder.Close()
			db.Close()
		})
		opts.DB = db
		opts.Recorder = env.recorder

		runs, err := scriptstore.New(filepath.Join(t.TempDir(), "runs.db"))
		if err != nil {
			t.Fatalf("scriptstore.New: %v", err)
		}
		if err := runs.Migrate(); err != nil {
			t.Fatalf("runs Migrate: %v", err)
		}
		t.Cleanup(func() { runs.Close() })
		opts.Runs = runs
	}
	env.handler = NewServer(opts).Routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

// createSession opens a session and plays without a skill so it is ready
// to deal.
func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{})
	expectStatus(t, w, http.StatusCreated)
	resp := decode[SessionResponse](t, w)
	id := resp.State.SessionID
	expectStatus(t, e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/skill", SkillRequest{}), http.StatusOK)
	return id
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/health/live", http.StatusOK},
		{"/version", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil)
			expectStatus(t, w, tt.want)
			if got := w.Header().Get("X-Engine-Version"); got != EngineVersion {
				t.Errorf("X-Engine-Version = %q, want %q", got, EngineVersion)
			}
		})
	}

	w := env.do(t, http.MethodGet, "/health", nil)
	health := decode[HealthCheckResponse](t, w)
	if health.Status != HealthStatusDegraded {
		t.Errorf("status without a store = %s, want degraded", health.Status)
	}
	if health.Checks["catalog"].Status != HealthStatusHealthy {
		t.Errorf("catalog check = %+v", health.Checks["catalog"])
	}
}

func TestHealthWithDatabase(t *testing.T) {
	env := newTestEnv(t, true)
	health := decode[HealthCheckResponse](t, env.do(t, http.MethodGet, "/health", nil))
	if health.Status != HealthStatusHealthy {
		t.Errorf("status = %s, want healthy (checks %+v)", health.Status, health.Checks)
	}
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{ClientSeed: "client", ServerSeed: "server"})
	expectStatus(t, w, http.StatusCreated)
	created := decode[SessionResponse](t, w)
	id := created.State.SessionID
	if !created.State.SkillPending {
		t.Fatal("new session should wait for a skill choice")
	}
	if created.State.ServerSeedHash != (engine.Seeds{Server: "server"}).ServerHash() {
		t.Errorf("server seed hash = %q", created.State.ServerSeedHash)
	}

	// Dealing before the skill choice is ignored, not an error.
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/deal", nil)
	expectStatus(t, w, http.StatusOK)
	if u := decode[game.Update](t, w); !u.Ignored || u.Reason != game.ReasonSkillPending {
		t.Fatalf("early deal = ignored %t reason %q", u.Ignored, u.Reason)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/skill", SkillRequest{SkillID: rules.CardPeek}), http.StatusOK)

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/deal", nil)
	expectStatus(t, w, http.StatusOK)
	dealt := decode[game.Update](t, w)
	if dealt.State.Phase != game.PhasePlayerTurn {
		t.Fatalf("phase after deal = %s", dealt.State.Phase)
	}
	if dealt.State.DealerHoleHidden {
		t.Error("card peek should reveal the hole card")
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stand", nil)
	expectStatus(t, w, http.StatusOK)
	stood := decode[game.Update](t, w)
	out := stood.State.LastOutcome
	if out == nil || out.Result != game.ResultWin {
		t.Fatalf("outcome = %+v, want a win", out)
	}

	got := decode[SessionResponse](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil))
	if got.State.Balance != out.BalanceAfter {
		t.Errorf("balance = %d, want %d", got.State.Balance, out.BalanceAfter)
	}
}

func TestBet(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/bet", BetRequest{Delta: -50})
	expectStatus(t, w, http.StatusOK)
	if u := decode[game.Update](t, w); u.Ignored || u.State.Bet != 50 {
		t.Errorf("bet after -50 = %d (ignored %t)", u.State.Bet, u.Ignored)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/bet", BetRequest{}), http.StatusBadRequest)
}

func TestErrors(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		errType string
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", nil, http.StatusNotFound, ErrTypeSessionNotFound},
		{"unknown session action", http.MethodPost, "/api/v1/sessions/nope/deal", nil, http.StatusNotFound, ErrTypeSessionNotFound},
		{"negative balance", http.MethodPost, "/api/v1/sessions", CreateSessionRequest{StartingBalance: -1}, http.StatusBadRequest, ErrTypeValidation},
		{"bad safety net", http.MethodPost, "/api/v1/sessions", CreateSessionRequest{SafetyNetMode: "always"}, http.StatusBadRequest, ErrTypeValidation},
		{"autoplay too long", http.MethodPost, "/api/v1/sessions/" + id + "/autoplay", AutoplayRequest{Rounds: maxAutoplayRounds + 1}, http.StatusBadRequest, ErrTypeValidation},
		{"history disabled", http.MethodGet, "/api/v1/sessions/" + id + "/rounds", nil, http.StatusServiceUnavailable, ErrTypeServiceUnavailable},
		{"list disabled", http.MethodGet, "/api/v1/sessions", nil, http.StatusServiceUnavailable, ErrTypeServiceUnavailable},
		{"runs disabled", http.MethodGet, "/api/v1/runs", nil, http.StatusServiceUnavailable, ErrTypeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, w, tt.status)
			if e := decode[EngineError](t, w); e.Type != tt.errType {
				t.Errorf("error type = %q, want %q", e.Type, tt.errType)
			}
		})
	}
}

func TestUnknownSkill(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	expectStatus(t, w, http.StatusCreated)
	id := decode[SessionResponse](t, w).State.SessionID

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/skill", SkillRequest{SkillID: "x-ray"})
	expectStatus(t, w, http.StatusBadRequest)
	if e := decode[EngineError](t, w); e.Type != ErrTypeUnknownSkill {
		t.Errorf("error type = %q", e.Type)
	}

	// The slot is still open after a rejected id.
	state := decode[SessionResponse](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)).State
	if !state.SkillPending {
		t.Error("skill choice should still be pending")
	}
}

func TestRestartKeepsOldID(t *testing.T) {
	env := newTestEnv(t, false)
	oldID := env.createSession(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+oldID+"/restart", RestartRequest{KeepSkills: true})
	expectStatus(t, w, http.StatusOK)
	newID := decode[game.Update](t, w).State.SessionID
	if newID == oldID {
		t.Fatal("restart should start a new session id")
	}

	for _, id := range []string{oldID, newID} {
		got := decode[SessionResponse](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil))
		if got.State.SessionID != newID {
			t.Errorf("GET %s answered for %s", id, got.State.SessionID)
		}
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/sessions/"+newID, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/sessions/"+oldID, nil), http.StatusNotFound)
}

func TestAutoplay(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	expectStatus(t, w, http.StatusCreated)
	id := decode[SessionResponse](t, w).State.SessionID

	script := `
function chooseskill(choices) { log("choices", choices.length); return "" }
function round() { return playervalue < 17 ? BLACKJACK_HIT : BLACKJACK_STAND }`
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/autoplay", AutoplayRequest{Script: script, Rounds: 2})
	expectStatus(t, w, http.StatusOK)
	resp := decode[AutoplayResponse](t, w)
	if resp.Engine.Stats == nil || resp.Engine.Stats.Rounds != 2 || resp.Engine.Stats.Wins != 2 {
		t.Fatalf("stats = %+v", resp.Engine.Stats)
	}
	if resp.Engine.StopReason != "round limit reached" {
		t.Errorf("stop reason = %q", resp.Engine.StopReason)
	}
	if len(resp.Logs) == 0 {
		t.Error("expected script logs")
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/autoplay",
		AutoplayRequest{Script: `function round() { return "split" }`, Rounds: 1})
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if e := decode[EngineError](t, w); e.Type != ErrTypeScript {
		t.Errorf("error type = %q", e.Type)
	}
}

func TestRoundHistory(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createSession(t)

	for i := 0; i < 2; i++ {
		expectStatus(t, env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/deal", nil), http.StatusOK)
		expectStatus(t, env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stand", nil), http.StatusOK)
	}
	env.recorder.Flush()

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/rounds?per_page=1", nil)
	expectStatus(t, w, http.StatusOK)
	page := decode[store.RoundsPage](t, w)
	if page.TotalCount != 2 || len(page.Rounds) != 1 || page.TotalPages != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Rounds[0].Result != string(game.ResultWin) {
		t.Errorf("result = %q", page.Rounds[0].Result)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/rounds.csv", nil)
	expectStatus(t, w, http.StatusOK)
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(records))
	}
	if records[0][0] != roundlog.Header[0] || records[2][0] != "2" {
		t.Errorf("csv = %v", records)
	}

	list := decode[store.SessionsList](t, env.do(t, http.MethodGet, "/api/v1/sessions?game_over=false", nil))
	if list.TotalCount != 1 || list.Sessions[0].ID != id {
		t.Errorf("sessions = %+v", list)
	}
	if list.Sessions[0].StartBalance != game.DefaultStartingBalance {
		t.Errorf("start balance = %d", list.Sessions[0].StartBalance)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/sessions?game_over=maybe", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/sessions/nope/rounds", nil), http.StatusNotFound)

	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil), http.StatusNoContent)
	stored, err := env.db.GetSession(t.Context(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.EndedAt == nil || stored.GameOver {
		t.Errorf("stored session = %+v, want ended without game over", stored)
	}
}

func TestStrategyRuns(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	expectStatus(t, w, http.StatusCreated)
	id := decode[SessionResponse](t, w).State.SessionID

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/autoplay", AutoplayRequest{Rounds: 1})
	expectStatus(t, w, http.StatusOK)
	played := decode[AutoplayResponse](t, w)
	if played.RunID == "" {
		t.Fatal("autoplay with a run store should return a run id")
	}

	list := decode[RunsResponse](t, env.do(t, http.MethodGet, "/api/v1/runs?session_id="+id, nil))
	if list.TotalCount != 1 || list.Runs[0].ID != played.RunID {
		t.Fatalf("runs = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/runs/"+played.RunID, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[RunResponse](t, w)
	if got.Run.Rounds != 1 || got.Run.Wins != 1 || got.Run.StartBalance != game.DefaultStartingBalance {
		t.Errorf("run = %+v", got.Run)
	}
	if got.Run.ScriptSource != "" || got.Run.FinalState != "stopped" {
		t.Errorf("run source %q state %q", got.Run.ScriptSource, got.Run.FinalState)
	}
	if len(got.Snapshots) != 1 || got.Snapshots[0].State.StopReason != "round limit reached" {
		t.Errorf("snapshots = %+v", got.Snapshots)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/v1/runs/"+played.RunID, nil), http.StatusNoContent)
	w = env.do(t, http.MethodGet, "/api/v1/runs/"+played.RunID, nil)
	expectStatus(t, w, http.StatusNotFound)
	if e := decode[EngineError](t, w); e.Type != ErrTypeRunNotFound {
		t.Errorf("error type = %q", e.Type)
	}
}

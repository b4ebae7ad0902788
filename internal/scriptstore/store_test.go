package scriptstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MJE43/luckyloop/internal/scripting"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test_script.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetRun(t *testing.T) {
	store := testStore(t)

	run := &Run{
		SessionID:    "session-1",
		ScriptSource: "function round() { return BLACKJACK_STAND }",
		MaxRounds:    50,
		StartBalance: 300,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if id == "" || run.ID != id {
		t.Fatalf("id = %q, run.ID = %q", id, run.ID)
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.SessionID != "session-1" || got.MaxRounds != 50 || got.StartBalance != 300 {
		t.Errorf("run = %+v", got)
	}
	if got.FinalState != "running" || got.EndedAt != nil || got.FinalBalance != nil {
		t.Errorf("new run should be open: %+v", got)
	}

	if _, err := store.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEndRun(t *testing.T) {
	store := testStore(t)
	id, err := store.CreateRun(&Run{SessionID: "s", StartBalance: 300})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	stats := RunStats{
		FinalBalance: 500, Rounds: 4, Wins: 3, Losses: 1,
		Profit: 200, Wagered: 400, HighestStreak: 2, LowestStreak: -1, LevelsCleared: 1,
	}
	if err := store.EndRun(id, "stopped", "round limit reached", stats); err != nil {
		t.Fatalf("EndRun: %v", err)
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.EndedAt == nil || got.FinalBalance == nil || *got.FinalBalance != 500 {
		t.Errorf("final balance = %v ended = %v", got.FinalBalance, got.EndedAt)
	}
	if got.FinalState != "stopped" || got.StopReason != "round limit reached" {
		t.Errorf("state = %q reason = %q", got.FinalState, got.StopReason)
	}
	if got.Rounds != 4 || got.Wins != 3 || got.LowestStreak != -1 || got.LevelsCleared != 1 {
		t.Errorf("stats = %+v", got)
	}

	if err := store.EndRun("missing", "stopped", "", RunStats{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("EndRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	for _, sess := range []string{"a", "a", "b"} {
		if _, err := store.CreateRun(&Run{SessionID: sess}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	tests := []struct {
		session string
		limit   int
		total   int
		rows    int
	}{
		{"", 10, 3, 3},
		{"", 2, 3, 2},
		{"a", 10, 2, 2},
		{"c", 10, 0, 0},
	}
	for _, tt := range tests {
		runs, total, err := store.ListRuns(tt.session, tt.limit, 0)
		if err != nil {
			t.Fatalf("ListRuns(%q): %v", tt.session, err)
		}
		if total != tt.total || len(runs) != tt.rows {
			t.Errorf("ListRuns(%q, %d) = %d rows of %d, want %d of %d",
				tt.session, tt.limit, len(runs), total, tt.rows, tt.total)
		}
	}
}

func TestSnapshotsAndDelete(t *testing.T) {
	store := testStore(t)
	id, err := store.CreateRun(&Run{SessionID: "s"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	state := scripting.EngineSnapshot{
		State:      scripting.StateStopped,
		StopReason: "stop() called",
		Stats:      &scripting.Statistics{Rounds: 2, Balance: 400},
		Chart:      []scripting.ChartPoint{{Round: 1, Balance: 350, Win: true}, {Round: 2, Balance: 400, Win: true}},
	}
	if err := store.InsertSnapshot(id, 2, state); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	snaps, err := store.GetSnapshots(id)
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	got := snaps[0].State
	if got.StopReason != "stop() called" || got.Stats == nil || got.Stats.Balance != 400 || len(got.Chart) != 2 {
		t.Errorf("snapshot state = %+v", got)
	}

	if err := store.DeleteRun(id); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if snaps, _ := store.GetSnapshots(id); len(snaps) != 0 {
		t.Errorf("snapshots survived delete: %d", len(snaps))
	}
	if err := store.DeleteRun(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRun error = %v, want ErrNotFound", err)
	}
}

func TestTrack(t *testing.T) {
	store := testStore(t)

	id, snap, err := store.Track("s", "script", 10, 300, func() (scripting.EngineSnapshot, error) {
		return scripting.EngineSnapshot{
			State:      scripting.StateStopped,
			StopReason: "round limit reached",
			Stats:      &scripting.Statistics{Rounds: 10, Wins: 6, Losses: 4, Balance: 420, Profit: 120},
		}, nil
	})
	if err != nil || id == "" {
		t.Fatalf("Track = %q, %v", id, err)
	}
	if snap.StopReason != "round limit reached" {
		t.Errorf("snapshot passed through = %+v", snap)
	}
	run, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.FinalState != "stopped" || run.Rounds != 10 || *run.FinalBalance != 420 {
		t.Errorf("tracked run = %+v", run)
	}

	failure := errors.New("round() returned unknown action \"split\"")
	id, _, err = store.Track("s", "bad", 1, 300, func() (scripting.EngineSnapshot, error) {
		return scripting.EngineSnapshot{State: scripting.StateError}, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Track error = %v, want the play error", err)
	}
	run, err = store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.FinalState != "error" || run.StopReason != failure.Error() {
		t.Errorf("failed run = %+v", run)
	}
}

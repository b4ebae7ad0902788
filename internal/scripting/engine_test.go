package scripting

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/rules"
)

// stackedTable builds a session whose rounds draw from the given stacks in
// order, with encounters disabled.
func stackedTable(t *testing.T, stacks ...[]cards.Card) *game.Session {
	t.Helper()
	cat := rules.Default()
	cat.EncounterChance = 0
	sess, err := game.NewSession(game.Config{
		Catalog: cat,
		Seeds:   engine.Seeds{Server: "server", Client: "client"},
		ShoeFactory: func(decks int, src engine.Source) *cards.Shoe {
			var order []cards.Card
			if len(stacks) > 0 {
				order, stacks = stacks[0], stacks[1:]
			}
			return cards.NewStackedShoe(decks, src, order...)
		},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

// seededTable builds a session that plays real shuffled shoes.
func seededTable(t *testing.T, balance int) *game.Session {
	t.Helper()
	sess, err := game.NewSession(game.Config{
		StartingBalance: balance,
		Seeds:           engine.Seeds{Server: "strategy-server", Client: "strategy-client"},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

// stack lists player, player, dealer hole, dealer up, then any draws.
func stack(ranks ...string) []cards.Card {
	out := make([]cards.Card, len(ranks))
	for i, r := range ranks {
		out[i] = cards.NewCard(r, "spades")
	}
	return out
}

type recordingEmitter struct {
	mu     sync.Mutex
	states []EngineSnapshot
}

func (e *recordingEmitter) EmitScriptState(state EngineSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, state)
}

func run(t *testing.T, table Table, script string, rounds int) (EngineSnapshot, *Engine) {
	t.Helper()
	eng := NewEngine(table, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := eng.Run(ctx, script, rounds)
	if err != nil {
		t.Fatalf("Run: %v (logs %v)", err, eng.GetLogs())
	}
	return snap, eng
}

func TestEngineDefaultStrategy(t *testing.T) {
	table := stackedTable(t,
		stack("10", "6", "10", "8", "5"),
		stack("10", "9", "10", "7"),
	)
	snap, _ := run(t, table, "", 2)

	if snap.State != StateStopped || snap.StopReason != "round limit reached" {
		t.Fatalf("state = %s (%s)", snap.State, snap.StopReason)
	}
	if snap.Stats.Rounds != 2 || snap.Stats.Wins != 2 {
		t.Errorf("stats = %+v", snap.Stats)
	}
	if snap.Stats.Balance != 500 || table.Snapshot().Balance != 500 {
		t.Errorf("balance = %d, table %d", snap.Stats.Balance, table.Snapshot().Balance)
	}
	if len(snap.Chart) != 2 || snap.Chart[1].Balance != 500 {
		t.Errorf("chart = %+v", snap.Chart)
	}
	if snap.Stats.LevelsCleared != 1 {
		t.Errorf("levels cleared = %d, want 1", snap.Stats.LevelsCleared)
	}
}

func TestEngineChooseSkillAndDouble(t *testing.T) {
	table := stackedTable(t, stack("6", "5", "10", "7", "10"))
	script := `
		chooseskill = function(choices) {
			log("choices", choices.length)
			return "card_peek"
		}
		round = function() {
			if (candouble && player.length == 2 && playervalue == 11) {
				return BLACKJACK_DOUBLE
			}
			log("hole hidden", holehidden, "dealer shows", dealerup)
			return BLACKJACK_STAND
		}
	`
	snap, eng := run(t, table, script, 1)

	if snap.Stats.Wins != 1 || snap.Stats.PreviousBet != 200 {
		t.Errorf("stats = %+v", snap.Stats)
	}
	ts := table.Snapshot()
	if ts.Skill == nil || ts.Skill.ID != rules.CardPeek {
		t.Errorf("skill = %+v", ts.Skill)
	}
	logs := eng.GetLogs()
	if len(logs) == 0 || logs[0].Message != "choices 5" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestEngineNextBet(t *testing.T) {
	table := stackedTable(t,
		stack("10", "9", "10", "7"),
		stack("10", "9", "10", "7"),
		stack("10", "9", "10", "7"),
	)
	script := DefaultStrategy + `
		afterround = function() {
			if (rounds == 1) {
				nextbet = 50
			} else {
				nextbet = 100000
			}
		}
	`
	snap, eng := run(t, table, script, 3)

	if snap.Stats.Rounds != 3 {
		t.Fatalf("rounds = %d", snap.Stats.Rounds)
	}
	// Round two used the script's bet; round three's bet was rejected.
	if snap.Stats.Wagered != 100+50+50 {
		t.Errorf("wagered = %d", snap.Stats.Wagered)
	}
	found := false
	for _, l := range eng.GetLogs() {
		if strings.HasPrefix(l.Message, "nextbet 100000 rejected") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected rejected bet log, got %+v", eng.GetLogs())
	}
}

func TestEngineStopFromScript(t *testing.T) {
	script := DefaultStrategy + `
		afterround = function() {
			if (rounds >= 2) {
				stop()
			}
		}
	`
	snap, _ := run(t, seededTable(t, 100000), script, 0)
	if snap.StopReason != "stop() called" || snap.Stats.Rounds != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestEngineStopsAtGameOver(t *testing.T) {
	table := seededTable(t, 300)
	script := `round = function() { return BLACKJACK_HIT }`
	snap, _ := run(t, table, script, 0)

	ts := table.Snapshot()
	if !ts.GameOver {
		t.Fatal("always hitting should end the game")
	}
	if snap.State != StateStopped || snap.StopReason != ts.GameOverReason {
		t.Errorf("state = %s (%s), game over reason %q", snap.State, snap.StopReason, ts.GameOverReason)
	}
	if snap.Stats.Losses == 0 {
		t.Error("expected losses")
	}
}

func TestEngineErrors(t *testing.T) {
	eng := NewEngine(seededTable(t, 300), nil)
	if err := eng.Start("var x = 1;", 0); err == nil {
		t.Fatal("expected error for missing round()")
	}
	if snap := eng.GetState(); snap.State != StateError {
		t.Errorf("state = %s", snap.State)
	}

	eng = NewEngine(seededTable(t, 300), nil)
	_, err := eng.Run(context.Background(), `round = function() { return "split" }`, 0)
	if err == nil || !strings.Contains(err.Error(), `unknown action "split"`) {
		t.Errorf("err = %v", err)
	}

	eng = NewEngine(seededTable(t, 300), nil)
	_, err = eng.Run(context.Background(), DefaultStrategy+`chooseskill = function() { return "nope" }`, 0)
	if err == nil || !strings.Contains(err.Error(), "unknown skill") {
		t.Errorf("err = %v", err)
	}

	eng = NewEngine(seededTable(t, 300), nil)
	if err := eng.Start(`require("fs")`, 0); err == nil {
		t.Error("require should be blocked")
	}
}

func TestEngineStartStop(t *testing.T) {
	em := &recordingEmitter{}
	eng := NewEngine(seededTable(t, 1000000), em)
	script := DefaultStrategy + `afterround = function() { sleep(20) }`

	if err := eng.Start(script, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := eng.Start(script, 0); err != errAlreadyRunning {
		t.Errorf("second Start = %v", err)
	}
	if snap := eng.GetState(); snap.State != StateRunning {
		t.Errorf("expected running, got %s", snap.State)
	}

	time.Sleep(100 * time.Millisecond)

	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	eng.Wait()

	snap := eng.GetState()
	if snap.State != StateStopped || snap.StopReason != "stopped" {
		t.Errorf("expected stopped, got %s (%s)", snap.State, snap.StopReason)
	}
	if snap.Stats.Rounds == 0 {
		t.Error("expected some rounds to have been played")
	}
	em.mu.Lock()
	if len(em.states) < 2 || em.states[0].State != StateRunning {
		t.Errorf("emitted %d states", len(em.states))
	}
	em.mu.Unlock()
	if err := eng.Stop(); err == nil {
		t.Error("Stop on a stopped engine should fail")
	}
}

func TestStatisticsRecordRound(t *testing.T) {
	s := NewStatistics(300)
	for _, out := range []game.Outcome{
		{Result: game.ResultWin, Bet: 100, Reward: 100, BalanceAfter: 400},
		{Result: game.ResultWin, Bet: 100, Reward: 150, BalanceAfter: 550},
		{Result: game.ResultPush, Bet: 200, BalanceAfter: 550},
		{Result: game.ResultLoss, Bet: 200, Reward: -200, BalanceAfter: 350},
	} {
		s.RecordRound(out)
	}
	if s.Rounds != 4 || s.Wins != 2 || s.Losses != 1 || s.Pushes != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.Profit != 50 || s.Balance != 350 || s.Wagered != 600 {
		t.Errorf("money = %+v", s)
	}
	if s.HighestStreak != 2 || s.LowestStreak != -1 || s.CurrentStreak != -1 {
		t.Errorf("streaks = %+v", s)
	}
	if s.HighestProfit != 250 || s.HighestBet != 200 {
		t.Errorf("peaks = %+v", s)
	}
	if got := s.ProfitPercent(); got < 16.6 || got > 16.7 {
		t.Errorf("profit percent = %f", got)
	}
}

func TestChartBuffer(t *testing.T) {
	cb := NewChartBuffer(10)
	for i := 0; i < 25; i++ {
		cb.Push(ChartPoint{Round: i, Balance: i * 10, Win: i%2 == 0})
	}

	if len(cb.Points) > 20 {
		t.Errorf("expected decimation to keep points <= 20, got %d", len(cb.Points))
	}
	if cb.Points[0].Round != 0 {
		t.Errorf("first point should be preserved, got %d", cb.Points[0].Round)
	}
	if cb.Points[len(cb.Points)-1].Round != 24 {
		t.Errorf("last point should be preserved, got %d", cb.Points[len(cb.Points)-1].Round)
	}
}

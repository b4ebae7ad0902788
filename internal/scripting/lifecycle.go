package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MJE43/luckyloop/internal/game"
)

// State represents the scripting engine's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// DefaultStrategy hits below 17 and otherwise stands.
const DefaultStrategy = `
round = function() {
	if (playervalue < 17) {
		return BLACKJACK_HIT
	}
	return BLACKJACK_STAND
}
`

// maxActions bounds round() calls per round.
const maxActions = 20

var errAlreadyRunning = errors.New("engine is already running")

// Table is the game surface the engine plays against. *game.Session
// satisfies it; callers sharing a session across goroutines wrap it with
// their own locking.
type Table interface {
	Deal() game.Update
	Hit() game.Update
	Stand() game.Update
	Double() game.Update
	AdjustBet(delta int) game.Update
	ChooseSkill(id string) (game.Update, error)
	Snapshot() game.Snapshot
}

var _ Table = (*game.Session)(nil)

// EventEmitter receives engine state as the run progresses.
type EventEmitter interface {
	EmitScriptState(state EngineSnapshot)
}

// EngineSnapshot is a serializable snapshot of the engine state.
type EngineSnapshot struct {
	State           State        `json:"state"`
	Error           string       `json:"error,omitempty"`
	StopReason      string       `json:"stopReason,omitempty"`
	Stats           *Statistics  `json:"stats"`
	Chart           []ChartPoint `json:"chart"`
	Level           int          `json:"level"`
	RoundsPerSecond float64      `json:"roundsPerSecond"`
}

// Engine runs a strategy script against a Table, one round at a time.
type Engine struct {
	mu     sync.RWMutex
	state  State
	err    error
	reason string
	cancel context.CancelFunc
	done   chan struct{}

	vm    *VM
	vars  *Variables
	stats *Statistics
	chart *ChartBuffer

	table     Table
	emitter   EventEmitter
	maxRounds int

	startTime time.Time
	lastEmit  time.Time
}

// NewEngine creates a new scripting engine. emitter may be nil.
func NewEngine(table Table, emitter EventEmitter) *Engine {
	return &Engine{
		state:   StateIdle,
		table:   table,
		emitter: emitter,
	}
}

// Start executes script once to register its hooks and then plays rounds
// in the background until maxRounds have resolved (0 means no limit), the
// script calls stop(), the game ends or Stop is called. An empty script
// runs DefaultStrategy.
func (e *Engine) Start(script string, maxRounds int) error {
	if script == "" {
		script = DefaultStrategy
	}

	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return errAlreadyRunning
	}

	snap := e.table.Snapshot()
	e.stats = NewStatistics(snap.Balance)
	e.chart = NewChartBuffer(500)
	e.vars = NewVariables(e.stats, snap)
	e.vm = NewVM()
	e.state = StateRunning
	e.err = nil
	e.reason = ""
	e.maxRounds = maxRounds
	e.startTime = time.Now()
	e.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	done := e.done
	e.mu.Unlock()

	e.vm.SetVariables(e.vars)

	if err := e.vm.Execute(script); err != nil {
		e.setError(err)
		cancel()
		close(done)
		return err
	}
	if !e.vm.HasFunc(fnRound) {
		err := fmt.Errorf("script must define a round() function")
		e.setError(err)
		cancel()
		close(done)
		return err
	}

	e.vm.SyncVariables(e.vars)
	e.vars.Running = true
	e.vm.SetVariables(e.vars)

	e.emitState()

	go e.roundLoop(ctx, done)
	return nil
}

// Run starts script and blocks until the run ends or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, script string, maxRounds int) (EngineSnapshot, error) {
	if err := e.Start(script, maxRounds); err != nil {
		return e.GetState(), err
	}
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()

	select {
	case <-done:
	case <-ctx.Done():
		e.Stop()
		<-done
	}
	snap := e.GetState()
	if snap.State == StateError {
		return snap, errors.New(snap.Error)
	}
	return snap, nil
}

// Stop gracefully stops the scripting engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine is not running")
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.state = StateStopped
	e.reason = "stopped"
	e.vars.Running = false
	e.mu.Unlock()

	e.emitState()
	return nil
}

// Wait blocks until the current run has ended.
func (e *Engine) Wait() {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// GetState returns the current engine snapshot.
func (e *Engine) GetState() EngineSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// GetLogs returns the script log buffer.
func (e *Engine) GetLogs() []LogEntry {
	e.mu.RLock()
	vm := e.vm
	e.mu.RUnlock()
	if vm == nil {
		return nil
	}
	return vm.GetLogs()
}

// roundLoop plays rounds until a stop condition is met.
func (e *Engine) roundLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			e.setError(fmt.Errorf("script panic: %v", r))
		}
	}()

	for {
		if ctx.Err() != nil {
			e.finish("stopped")
			return
		}
		if e.vm.IsStopRequested() {
			e.finish("stop() called")
			return
		}
		if e.maxRounds > 0 && e.roundsPlayed() >= e.maxRounds {
			e.finish("round limit reached")
			return
		}

		snap := e.table.Snapshot()
		if snap.GameOver {
			e.finish(snap.GameOverReason)
			return
		}
		if snap.SkillPending {
			if err := e.chooseSkill(snap); err != nil {
				e.setError(err)
				return
			}
			continue
		}

		e.applyNextBet(snap)

		u := e.table.Deal()
		if u.Ignored {
			e.setError(fmt.Errorf("deal ignored: %s", u.Reason))
			return
		}
		e.countLevelUps(u.Events)
		out := resolvedOutcome(u.Events)

		for i := 0; out == nil && u.State.InRound; i++ {
			if ctx.Err() != nil {
				e.finish("stopped")
				return
			}
			var err error
			if i >= maxActions {
				u = e.table.Stand()
			} else if u, err = e.playAction(u.State); err != nil {
				e.setError(err)
				return
			}
			e.countLevelUps(u.Events)
			out = resolvedOutcome(u.Events)
		}

		if out == nil {
			// The deal settled a level transition instead of dealing cards.
			snap := e.table.Snapshot()
			e.mu.Lock()
			e.vars.apply(snap)
			e.vars.NextBet = snap.Bet
			e.mu.Unlock()
			continue
		}

		if stop, err := e.afterRound(*out); err != nil {
			e.setError(err)
			return
		} else if stop != "" {
			e.finish(stop)
			return
		}

		e.throttledEmitState()

		if d := e.vm.TakeSleepTime(); d > 0 {
			select {
			case <-ctx.Done():
				e.finish("stopped")
				return
			case <-time.After(d):
			}
		}
	}
}

func (e *Engine) roundsPlayed() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.Rounds
}

// chooseSkill fills a pending skill slot from chooseskill().
func (e *Engine) chooseSkill(snap game.Snapshot) error {
	choices := make([]string, len(snap.SkillChoices))
	for i, c := range snap.SkillChoices {
		choices[i] = c.ID
	}
	e.mu.Lock()
	e.vars.apply(snap)
	e.vm.SetVariables(e.vars)
	e.mu.Unlock()

	id, err := e.vm.CallChooseSkill(choices)
	if err != nil {
		return err
	}
	if _, err := e.table.ChooseSkill(id); err != nil {
		return fmt.Errorf("chooseskill(): %w", err)
	}
	return nil
}

// applyNextBet moves the table bet to the script's nextbet. A bet the table
// rejects is logged and the current bet stands.
func (e *Engine) applyNextBet(snap game.Snapshot) {
	e.mu.RLock()
	next := e.vars.NextBet
	e.mu.RUnlock()
	if next <= 0 || next == snap.Bet {
		return
	}
	if u := e.table.AdjustBet(next - snap.Bet); u.Ignored {
		e.vm.appendLog(fmt.Sprintf("nextbet %d rejected: %s", next, u.Reason))
		e.mu.Lock()
		e.vars.NextBet = snap.Bet
		e.mu.Unlock()
	}
}

// playAction asks round() for one decision and applies it.
func (e *Engine) playAction(snap game.Snapshot) (game.Update, error) {
	e.mu.Lock()
	e.vars.apply(snap)
	e.vm.SetVariables(e.vars)
	e.mu.Unlock()

	action, err := e.vm.CallRound()
	if err != nil {
		return game.Update{}, err
	}
	e.mu.Lock()
	e.vm.SyncVariables(e.vars)
	e.mu.Unlock()

	switch action {
	case ActionHit:
		return e.table.Hit(), nil
	case ActionStand:
		return e.table.Stand(), nil
	case ActionDouble:
		u := e.table.Double()
		if u.Ignored {
			e.vm.appendLog(fmt.Sprintf("double rejected: %s, standing", u.Reason))
			return e.table.Stand(), nil
		}
		return u, nil
	default:
		return game.Update{}, fmt.Errorf("round() returned unknown action %q", action)
	}
}

// afterRound updates statistics and variables, then runs afterround(). It
// returns a stop reason when the run should end.
func (e *Engine) afterRound(out game.Outcome) (string, error) {
	snap := e.table.Snapshot()

	e.mu.Lock()
	e.stats.RecordRound(out)
	e.vars.Win = out.Result == game.ResultWin
	e.vars.Result = string(out.Result)
	e.vars.Reward = out.Reward
	e.vars.PreviousBet = out.Bet
	e.vars.apply(snap)
	e.vars.NextBet = snap.Bet
	e.vm.SetVariables(e.vars)
	e.chart.Push(ChartPoint{
		Round:   e.stats.Rounds,
		Balance: out.BalanceAfter,
		Win:     e.vars.Win,
	})
	e.mu.Unlock()

	if err := e.vm.CallAfterRound(); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.vm.SyncVariables(e.vars)
	stopOnWin := e.vars.StopOnWin
	e.mu.Unlock()

	if e.vm.IsStopRequested() {
		return "stop() called", nil
	}
	if stopOnWin && out.Result == game.ResultWin {
		return "stoponwin", nil
	}
	return "", nil
}

func (e *Engine) countLevelUps(events []game.Event) {
	n := 0
	for _, ev := range events {
		if ev.Kind == game.EventLevelUp {
			n++
		}
	}
	if n == 0 {
		return
	}
	e.mu.Lock()
	e.stats.LevelsCleared += n
	e.mu.Unlock()
}

// resolvedOutcome finds the settlement among events, if the action
// resolved the round.
func resolvedOutcome(events []game.Event) *game.Outcome {
	for _, ev := range events {
		if ev.Kind == game.EventRoundResolved && ev.Outcome != nil {
			return ev.Outcome
		}
	}
	return nil
}

// finish moves a running engine to stopped with reason.
func (e *Engine) finish(reason string) {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateStopped
		e.reason = reason
	}
	e.vars.Running = false
	e.mu.Unlock()
	e.emitState()
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	e.state = StateError
	e.err = err
	if e.vars != nil {
		e.vars.Running = false
	}
	e.mu.Unlock()
	e.emitState()
}

func (e *Engine) snapshot() EngineSnapshot {
	snap := EngineSnapshot{
		State:      e.state,
		StopReason: e.reason,
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	if e.stats != nil {
		statsCopy := *e.stats
		snap.Stats = &statsCopy
	}
	if e.chart != nil {
		snap.Chart = append([]ChartPoint(nil), e.chart.Points...)
	}
	if e.vars != nil {
		snap.Level = e.vars.Level
	}
	if e.state == StateRunning && e.stats != nil && e.stats.Rounds > 0 {
		if elapsed := time.Since(e.startTime).Seconds(); elapsed > 0 {
			snap.RoundsPerSecond = float64(e.stats.Rounds) / elapsed
		}
	}
	return snap
}

func (e *Engine) emitState() {
	if e.emitter == nil {
		return
	}
	e.mu.Lock()
	snap := e.snapshot()
	e.lastEmit = time.Now()
	e.mu.Unlock()
	e.emitter.EmitScriptState(snap)
}

// throttledEmitState only emits if at least 100ms have passed since the last emission.
func (e *Engine) throttledEmitState() {
	e.mu.RLock()
	recent := time.Since(e.lastEmit) < 100*time.Millisecond
	e.mu.RUnlock()
	if recent {
		return
	}
	e.emitState()
}

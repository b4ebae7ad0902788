// Command luckyloop plays the blackjack roguelike in a terminal, or runs a
// strategy script against it unattended with -script.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/MJE43/luckyloop/internal/config"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/present"
	"github.com/MJE43/luckyloop/internal/roundlog"
	"github.com/MJE43/luckyloop/internal/scripting"
	"github.com/MJE43/luckyloop/internal/scriptstore"
	"github.com/MJE43/luckyloop/internal/store"
)

const actionsPrompt = "[d]eal [h]it [s]tand [x] double [+/-] bet [n] auto round [r]estart [k] restart keeping skills [q]uit"

func main() {
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)

	if err := run(logger, os.Args[1:]); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// app ties one session to its history sinks.
type app struct {
	sess   *game.Session
	db     store.DB
	runs   *scriptstore.Store
	logger *slog.Logger
}

func run(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("luckyloop", flag.ContinueOnError)
	scriptPath := fs.String("script", "", "strategy script to play unattended")
	rounds := fs.Int("rounds", 100, "round limit for -script")
	showCards := fs.Bool("cards", false, "announce every dealt card")
	cfg, err := config.LoadWithFlags(fs, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gcfg, err := cfg.SessionConfig()
	if err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	// Store and CSV writers log through slog.
	sinkLogger := slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	var recorders game.MultiRecorder
	if db != nil {
		defer db.Close()
		rec := store.NewRecorder(db, 1, sinkLogger)
		defer rec.Close()
		recorders = append(recorders, rec)
	}
	if cfg.CSVPath != "" {
		csvLog, err := roundlog.Open(cfg.CSVPath, sinkLogger)
		if err != nil {
			return err
		}
		recorders = append(recorders, csvLog)
	}
	gcfg.Recorder = recorders

	if *scriptPath == "" {
		n := present.NewNotifier(os.Stdout)
		n.Cards = *showCards
		gcfg.Notifier = n
	}

	sess, err := game.NewSession(gcfg)
	if err != nil {
		return err
	}
	a := &app{sess: sess, db: db, logger: logger}
	a.saveSession(ctx)
	defer a.endSession(context.Background())

	logger.Info("session started",
		slog.String("session", sess.ID()),
		slog.String("server_seed_hash", sess.Seeds().ServerHash()),
		slog.String("client_seed", sess.Seeds().Client))

	if *scriptPath != "" {
		if cfg.DBDriver == "sqlite" {
			if a.runs, err = scriptstore.New(cfg.DBPath); err == nil {
				err = a.runs.Migrate()
			}
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer a.runs.Close()
		}
		return a.autoplay(ctx, *scriptPath, *rounds)
	}
	return a.interactive(ctx)
}

func (a *app) saveSession(ctx context.Context) {
	if a.db == nil {
		return
	}
	snap := a.sess.Snapshot()
	err := a.db.SaveSession(ctx, &store.Session{
		ID:             snap.SessionID,
		ClientSeed:     snap.ClientSeed,
		ServerSeedHash: snap.ServerSeedHash,
		StartBalance:   snap.Balance,
	})
	if err != nil {
		a.logger.Warn("save session", slog.String("error", err.Error()))
	}
}

func (a *app) endSession(ctx context.Context) {
	if a.db == nil {
		return
	}
	snap := a.sess.Snapshot()
	if err := a.db.EndSession(ctx, snap.SessionID, snap.GameOver); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("end session", slog.String("error", err.Error()))
	}
}

func (a *app) restart(ctx context.Context, keepSkills bool) game.Update {
	a.endSession(ctx)
	u := a.sess.Restart(keepSkills)
	a.saveSession(ctx)
	return u
}

func title() {
	t, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Lucky", pterm.FgYellow.ToStyle()),
		putils.LettersFromStringWithStyle("Loop", pterm.FgRed.ToStyle()),
	).Srender()
	if err != nil {
		return
	}
	pterm.Print(t)
}

func (a *app) interactive(ctx context.Context) error {
	title()
	for ctx.Err() == nil {
		snap := a.sess.Snapshot()

		if snap.GameOver {
			pterm.Println(present.Summary(snap))
			again, _ := pterm.DefaultInteractiveConfirm.Show("Play again?")
			if !again {
				return nil
			}
			keep, _ := pterm.DefaultInteractiveConfirm.Show("Keep collected skills?")
			a.restart(ctx, keep)
			continue
		}

		if snap.SkillPending {
			opt, err := pterm.DefaultInteractiveSelect.
				WithOptions(present.SkillOptions(snap)).
				Show(fmt.Sprintf("Choose a skill for level %d", snap.Level))
			if err != nil {
				return err
			}
			if _, err := a.sess.ChooseSkill(present.SkillID(opt)); err != nil {
				pterm.Error.Println(err.Error())
			}
			continue
		}

		pterm.Println(present.Table(snap))
		cmd, err := pterm.DefaultInteractiveTextInput.Show(actionsPrompt)
		if err != nil {
			return err
		}

		var u game.Update
		switch strings.ToLower(strings.TrimSpace(cmd)) {
		case "d":
			u = a.sess.Deal()
		case "h":
			u = a.sess.Hit()
		case "s":
			u = a.sess.Stand()
		case "x":
			u = a.sess.Double()
		case "+":
			u = a.sess.BetUp()
		case "-":
			u = a.sess.BetDown()
		case "n":
			u = a.sess.AutoPlay()
		case "r":
			u = a.restart(ctx, false)
		case "k":
			u = a.restart(ctx, true)
		case "q":
			return nil
		default:
			pterm.Warning.Printfln("Unknown command %q", cmd)
			continue
		}
		if u.Ignored {
			pterm.Warning.Println(u.Reason)
		}
	}
	return nil
}

// spinnerEmitter shows live strategy progress on a spinner line.
type spinnerEmitter struct {
	spinner *pterm.SpinnerPrinter
}

func (e spinnerEmitter) EmitScriptState(s scripting.EngineSnapshot) {
	if s.Stats == nil {
		return
	}
	e.spinner.UpdateText(fmt.Sprintf("round %s  level %d  balance %s  %.0f rounds/s",
		present.Money(s.Stats.Rounds), s.Level, present.Money(s.Stats.Balance), s.RoundsPerSecond))
}

func (a *app) autoplay(ctx context.Context, path string, rounds int) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	spinner, _ := pterm.DefaultSpinner.Start("Running strategy...")
	eng := scripting.NewEngine(a.sess, spinnerEmitter{spinner: spinner})
	start := time.Now()
	play := func() (scripting.EngineSnapshot, error) { return eng.Run(ctx, string(src), rounds) }

	var (
		runID string
		snap  scripting.EngineSnapshot
	)
	if a.runs != nil {
		runID, snap, err = a.runs.Track(a.sess.ID(), string(src), rounds, a.sess.Snapshot().Balance, play)
	} else {
		snap, err = play()
	}
	if err != nil {
		spinner.Fail(err.Error())
		printLogs(eng.GetLogs())
		return err
	}
	spinner.Success(fmt.Sprintf("Stopped after %s: %s", time.Since(start).Round(time.Millisecond), snap.StopReason))
	if runID != "" {
		a.logger.Info("strategy run stored", slog.String("run", runID))
	}

	printLogs(eng.GetLogs())
	st := snap.Stats
	data := pterm.TableData{
		{"Rounds", present.Money(st.Rounds)},
		{"Won / lost / pushed", fmt.Sprintf("%d / %d / %d", st.Wins, st.Losses, st.Pushes)},
		{"Wagered", present.Money(st.Wagered)},
		{"Profit", fmt.Sprintf("%s (%.1f%%)", present.Signed(st.Profit), st.ProfitPercent())},
		{"Longest streaks", fmt.Sprintf("%d won, %d lost", st.HighestStreak, -st.LowestStreak)},
		{"Levels cleared", present.Money(st.LevelsCleared)},
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		a.logger.Warn("render stats", slog.String("error", err.Error()))
	}
	if state := a.sess.Snapshot(); state.GameOver {
		pterm.Println(present.Summary(state))
	}
	return nil
}

func printLogs(logs []scripting.LogEntry) {
	for _, l := range logs {
		pterm.Info.Println("script: " + l.Message)
	}
}

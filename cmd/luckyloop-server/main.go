// Command luckyloop-server serves game sessions over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/luckyloop/internal/api"
	"github.com/MJE43/luckyloop/internal/config"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/roundlog"
	"github.com/MJE43/luckyloop/internal/scriptstore"
	"github.com/MJE43/luckyloop/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "[luckyloop] ", log.LstdFlags)

	fs := flag.NewFlagSet("luckyloop-server", flag.ExitOnError)
	maxSessions := fs.Int("max-sessions", 1000, "live session cap")
	cfg, err := config.LoadWithFlags(fs, os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	// Fail at start-up on a bad catalog rather than on the first request.
	if _, err := cfg.SessionConfig(); err != nil {
		logger.Fatalf("session config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	storeLogger := log.New(os.Stdout, "[store] ", log.LstdFlags)
	var recorders game.MultiRecorder
	var rec *store.Recorder
	if db != nil {
		rec = store.NewRecorder(db, 1, storeLogger)
		recorders = append(recorders, rec)
	}
	// One CSV log is shared by every session; -csv "" disables it.
	if cfg.CSVPath != "" {
		csvLog, err := roundlog.Open(cfg.CSVPath, storeLogger)
		if err != nil {
			logger.Fatalf("open round log: %v", err)
		}
		recorders = append(recorders, csvLog)
	}

	// Strategy runs live next to the history in the SQLite file.
	var runs *scriptstore.Store
	if cfg.DBDriver == "sqlite" {
		runs, err = openRuns(cfg.DBPath)
		if err != nil {
			logger.Fatalf("open run store: %v", err)
		}
	}

	server := api.NewServer(api.Options{
		NewConfig:   cfg.SessionConfig,
		DB:          db,
		Recorder:    recorders,
		Runs:        runs,
		MaxSessions: *maxSessions,
	})

	addr, err := server.Start(cfg.HTTPAddr)
	if err != nil {
		logger.Fatalf("listen %s: %v", cfg.HTTPAddr, err)
	}
	logger.Printf("listening on http://%s (store=%s)", addr, cfg.DBDriver)

	<-ctx.Done()
	logger.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	if rec != nil {
		rec.Close()
	}
	if runs != nil {
		runs.Close()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Printf("close store: %v", err)
		}
	}
}

func openRuns(path string) (*scriptstore.Store, error) {
	runs, err := scriptstore.New(path)
	if err != nil {
		return nil, err
	}
	if err := runs.Migrate(); err != nil {
		runs.Close()
		return nil, err
	}
	return runs, nil
}

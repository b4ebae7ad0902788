// Package config loads runtime settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/rules"
)

// Config is the full set of runtime settings.
type Config struct {
	StartingBalance   int     `env:"LUCKYLOOP_STARTING_BALANCE" envDefault:"300"`
	MaxRoundsPerLevel int     `env:"LUCKYLOOP_MAX_ROUNDS_PER_LEVEL" envDefault:"5"`
	EncounterChance   float64 `env:"LUCKYLOOP_ENCOUNTER_CHANCE" envDefault:"0.18"`
	SafetyNetMode     string  `env:"LUCKYLOOP_SAFETY_NET_MODE" envDefault:"every_round"`
	BetStep           int     `env:"LUCKYLOOP_BET_STEP" envDefault:"50"`
	MinBet            int     `env:"LUCKYLOOP_MIN_BET" envDefault:"10"`
	CatalogPath       string  `env:"LUCKYLOOP_CATALOG_PATH"`

	CSVPath     string `env:"LUCKYLOOP_CSV_PATH" envDefault:"results.csv"`
	DBDriver    string `env:"LUCKYLOOP_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"LUCKYLOOP_DB_PATH" envDefault:"luckyloop.db"`
	DatabaseURL string `env:"LUCKYLOOP_DATABASE_URL"`

	HTTPAddr string `env:"LUCKYLOOP_HTTP_ADDR" envDefault:"127.0.0.1:8077"`

	ServerSeed string `env:"LUCKYLOOP_SERVER_SEED"`
	ClientSeed string `env:"LUCKYLOOP_CLIENT_SEED"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RegisterFlags binds the settings most worth overriding per run to fs,
// using the loaded values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.StartingBalance, "balance", c.StartingBalance, "starting balance")
	fs.StringVar(&c.SafetyNetMode, "safety-net", c.SafetyNetMode, "safety net mode: every_round or once_per_level")
	fs.StringVar(&c.CatalogPath, "catalog", c.CatalogPath, "path to a JSON rules catalog")
	fs.StringVar(&c.CSVPath, "csv", c.CSVPath, "round log CSV path (empty disables)")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "history store: sqlite, postgres or none")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.ServerSeed, "server-seed", c.ServerSeed, "server seed for a reproducible game")
	fs.StringVar(&c.ClientSeed, "client-seed", c.ClientSeed, "client seed for a reproducible game")
}

// LoadWithFlags loads the environment, then applies args through fs.
func LoadWithFlags(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag set is required")
	}
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}

// Catalog returns the configured rules catalog with the encounter chance
// applied.
func (c Config) Catalog() (*rules.Catalog, error) {
	cat := rules.Default()
	if c.CatalogPath != "" {
		var err error
		if cat, err = rules.Load(c.CatalogPath); err != nil {
			return nil, err
		}
		if !isSet("LUCKYLOOP_ENCOUNTER_CHANCE") {
			return cat, nil
		}
	}
	cat.EncounterChance = c.EncounterChance
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// SessionConfig builds a game configuration; the caller attaches its
// notifier and recorder.
func (c Config) SessionConfig() (game.Config, error) {
	cat, err := c.Catalog()
	if err != nil {
		return game.Config{}, err
	}
	return game.Config{
		Catalog:           cat,
		StartingBalance:   c.StartingBalance,
		MaxRoundsPerLevel: c.MaxRoundsPerLevel,
		MinBet:            c.MinBet,
		BetStep:           c.BetStep,
		SafetyNetMode:     game.SafetyNetMode(c.SafetyNetMode),
		Seeds:             engine.Seeds{Server: c.ServerSeed, Client: c.ClientSeed},
	}, nil
}

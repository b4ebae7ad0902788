// Package rules is the static data the game engine plays by: level
// configurations, skills and encounters.
package rules

import (
	"errors"
	"fmt"

	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/shopspring/decimal"
)

// ErrInvalidCatalog is wrapped by every Validate failure.
var ErrInvalidCatalog = errors.New("rules: invalid catalog")

// LevelConfig describes one difficulty level.
type LevelConfig struct {
	Level            int             `json:"level"`
	Decks            int             `json:"decks"`
	DealerHitsSoft17 bool            `json:"dealer_hits_soft_17"`
	BlackjackPayout  decimal.Decimal `json:"blackjack_payout"`
	Threshold        int             `json:"threshold"`
	BaseBet          int             `json:"base_bet"`
}

// SkillKind selects what a skill does to the round. SkillWinChance and
// SkillExtraDouble are shown and recorded but do not change play.
type SkillKind string

const (
	SkillWinChance        SkillKind = "win_chance_bonus"
	SkillPeek             SkillKind = "peek_dealer_hole_card"
	SkillExtraDouble      SkillKind = "extra_double"
	SkillRewardMultiplier SkillKind = "reward_multiplier"
	SkillSafetyNet        SkillKind = "safety_net"
)

func (k SkillKind) valid() bool {
	switch k {
	case SkillWinChance, SkillPeek, SkillExtraDouble, SkillRewardMultiplier, SkillSafetyNet:
		return true
	}
	return false
}

// Skill is a player-chosen modifier that lasts one level.
type Skill struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        SkillKind       `json:"kind"`
	Magnitude   decimal.Decimal `json:"magnitude"`
}

// EncounterEffect is the set of rule changes an encounter applies to a
// single round. Zero values mean "no change".
type EncounterEffect struct {
	DecksDelta             int             `json:"decks_delta,omitempty"`
	DealerStandsEarly      bool            `json:"dealer_stands_early,omitempty"`
	PayoutMultiplier       decimal.Decimal `json:"payout_multiplier,omitempty"`
	HouseEdge              decimal.Decimal `json:"house_edge,omitempty"`
	PlayerExtraCard        bool            `json:"player_extra_card,omitempty"`
	DealerHitsAggressively bool            `json:"dealer_hits_aggressively,omitempty"`
}

// Encounter is a random single-round rule modifier.
type Encounter struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Effect      EncounterEffect `json:"effect"`
}

// Catalog bundles everything the engine looks up by id.
type Catalog struct {
	Levels          []LevelConfig `json:"levels"`
	Skills          []Skill       `json:"skills"`
	Encounters      []Encounter   `json:"encounters"`
	EncounterChance float64       `json:"encounter_chance"`
	// FallbackBet is the base bet used when a level leaves BaseBet unset.
	FallbackBet int `json:"fallback_bet"`
}

// Level returns the configuration for level n. Levels are validated to be
// contiguous from 1 at load time, so an unknown level is a programming error.
func (c *Catalog) Level(n int) LevelConfig {
	if n < 1 || n > len(c.Levels) {
		panic(fmt.Sprintf("rules: unknown level %d", n))
	}
	return c.Levels[n-1]
}

// MaxLevel is the highest level number.
func (c *Catalog) MaxLevel() int { return len(c.Levels) }

// BaseBet returns the opening bet for level n.
func (c *Catalog) BaseBet(n int) int {
	if n >= 1 && n <= len(c.Levels) && c.Levels[n-1].BaseBet > 0 {
		return c.Levels[n-1].BaseBet
	}
	return c.FallbackBet
}

// Skill looks up a skill by id.
func (c *Catalog) Skill(id string) (Skill, bool) {
	for _, s := range c.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// Encounter looks up an encounter by id.
func (c *Catalog) Encounter(id string) (Encounter, bool) {
	for _, e := range c.Encounters {
		if e.ID == id {
			return e, true
		}
	}
	return Encounter{}, false
}

// RollEncounter returns an encounter with probability EncounterChance,
// chosen uniformly, or nil.
func (c *Catalog) RollEncounter(src engine.Source) *Encounter {
	if len(c.Encounters) == 0 {
		return nil
	}
	if src.Float64() >= c.EncounterChance {
		return nil
	}
	enc := c.Encounters[src.Intn(len(c.Encounters))]
	return &enc
}

// Validate checks internal consistency.
func (c *Catalog) Validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidCatalog)
	}
	for i, l := range c.Levels {
		if l.Level != i+1 {
			return fmt.Errorf("%w: level at index %d has number %d, want %d", ErrInvalidCatalog, i, l.Level, i+1)
		}
		if l.Decks < 1 {
			return fmt.Errorf("%w: level %d has %d decks", ErrInvalidCatalog, l.Level, l.Decks)
		}
		if !l.BlackjackPayout.IsPositive() {
			return fmt.Errorf("%w: level %d blackjack payout must be > 0", ErrInvalidCatalog, l.Level)
		}
		if l.Threshold <= 0 {
			return fmt.Errorf("%w: level %d threshold must be > 0", ErrInvalidCatalog, l.Level)
		}
		if l.BaseBet <= 0 && c.FallbackBet <= 0 {
			return fmt.Errorf("%w: level %d has no base bet and no fallback", ErrInvalidCatalog, l.Level)
		}
	}
	seen := make(map[string]bool)
	for _, s := range c.Skills {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("%w: missing or duplicate skill id %q", ErrInvalidCatalog, s.ID)
		}
		seen[s.ID] = true
		if !s.Kind.valid() {
			return fmt.Errorf("%w: skill %s has unknown kind %q", ErrInvalidCatalog, s.ID, s.Kind)
		}
	}
	seen = make(map[string]bool)
	for _, e := range c.Encounters {
		if e.ID == "" || seen[e.ID] {
			return fmt.Errorf("%w: missing or duplicate encounter id %q", ErrInvalidCatalog, e.ID)
		}
		seen[e.ID] = true
		if e.Effect.PayoutMultiplier.IsNegative() {
			return fmt.Errorf("%w: encounter %s has negative payout multiplier", ErrInvalidCatalog, e.ID)
		}
	}
	if c.EncounterChance < 0 || c.EncounterChance > 1 {
		return fmt.Errorf("%w: encounter chance %v outside [0, 1]", ErrInvalidCatalog, c.EncounterChance)
	}
	return nil
}

package game

import "github.com/MJE43/luckyloop/internal/rules"

// Decision is what the progression controller wants to happen next.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionAdvance  Decision = "advance"
	DecisionReplay   Decision = "replay"
	DecisionGameOver Decision = "game_over"
)

// Progression decides level advancement, level replay and game over.
type Progression struct {
	catalog   *rules.Catalog
	maxRounds int
}

// NewProgression returns a controller for catalog with the given per-level
// round cap.
func NewProgression(catalog *rules.Catalog, maxRounds int) Progression {
	return Progression{catalog: catalog, maxRounds: maxRounds}
}

// BeforeDeal is checked when a new round is requested. A bet the balance
// cannot cover ends the game. A level whose round budget is spent either
// advances (threshold met, levels remain) or is replayed.
func (p Progression) BeforeDeal(balance, bet, level, levelRounds int) Decision {
	if balance < bet {
		return DecisionGameOver
	}
	if levelRounds >= p.maxRounds {
		if p.canAdvance(balance, level) {
			return DecisionAdvance
		}
		return DecisionReplay
	}
	return DecisionContinue
}

// AfterResolve is checked once a round has been settled.
func (p Progression) AfterResolve(balance, level int) Decision {
	if balance <= 0 {
		return DecisionGameOver
	}
	if p.canAdvance(balance, level) {
		return DecisionAdvance
	}
	return DecisionContinue
}

func (p Progression) canAdvance(balance, level int) bool {
	return level < p.catalog.MaxLevel() && balance >= p.catalog.Level(level).Threshold
}

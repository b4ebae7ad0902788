package game

import (
	"testing"

	"github.com/MJE43/luckyloop/internal/rules"
)

func TestProgressionBeforeDeal(t *testing.T) {
	p := NewProgression(rules.Default(), 5)

	tests := []struct {
		name                             string
		balance, bet, level, levelRounds int
		want                             Decision
	}{
		{"fresh level", 300, 100, 1, 0, DecisionContinue},
		{"mid level", 300, 100, 1, 4, DecisionContinue},
		{"bet above balance", 90, 100, 1, 2, DecisionGameOver},
		{"bet above balance beats round cap", 90, 100, 1, 5, DecisionGameOver},
		{"cap reached with threshold", 600, 100, 1, 5, DecisionAdvance},
		{"cap reached without threshold", 400, 100, 1, 5, DecisionReplay},
		{"cap reached on max level", 9000, 500, 3, 5, DecisionReplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.BeforeDeal(tt.balance, tt.bet, tt.level, tt.levelRounds); got != tt.want {
				t.Errorf("BeforeDeal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProgressionAfterResolve(t *testing.T) {
	p := NewProgression(rules.Default(), 5)

	tests := []struct {
		name           string
		balance, level int
		want           Decision
	}{
		{"below threshold", 450, 1, DecisionContinue},
		{"threshold met", 500, 1, DecisionAdvance},
		{"level two threshold", 1200, 2, DecisionAdvance},
		{"max level never advances", 5000, 3, DecisionContinue},
		{"zero balance", 0, 1, DecisionGameOver},
		{"negative balance", -40, 2, DecisionGameOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AfterResolve(tt.balance, tt.level); got != tt.want {
				t.Errorf("AfterResolve = %s, want %s", got, tt.want)
			}
		})
	}
}

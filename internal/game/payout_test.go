package game

import (
	"testing"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/shopspring/decimal"
)

func hand(ranks ...string) []cards.Card {
	out := make([]cards.Card, len(ranks))
	for i, r := range ranks {
		out[i] = cards.NewCard(r, "spades")
	}
	return out
}

func TestSettle(t *testing.T) {
	one := decimal.NewFromInt(1)
	payout := decimal.RequireFromString("1.5")

	tests := []struct {
		name      string
		player    []cards.Card
		dealer    []cards.Card
		bet       int
		balance   int
		payout    decimal.Decimal
		mult      decimal.Decimal
		safetyNet bool
		want      Result
		reward    int
		netUsed   bool
	}{
		{"blackjack beats dealer 21 of three cards", hand("A", "K"), hand("9", "7", "5"), 100, 300, payout, one, false, ResultWin, 150, false},
		{"blackjack beats dealer 16", hand("A", "K"), hand("9", "7"), 100, 300, payout, one, false, ResultWin, 150, false},
		{"both blackjack push", hand("A", "K"), hand("A", "Q"), 100, 300, payout, one, false, ResultPush, 0, false},
		{"dealer blackjack beats player 21", hand("7", "7", "7"), hand("A", "J"), 100, 300, payout, one, false, ResultLoss, -100, false},
		{"player bust loses even if dealer busts", hand("10", "6", "9"), hand("10", "6", "8"), 100, 300, payout, one, false, ResultLoss, -100, false},
		{"dealer bust", hand("10", "6"), hand("10", "6", "8"), 100, 300, payout, one, false, ResultWin, 100, false},
		{"higher total wins", hand("10", "9"), hand("10", "8"), 100, 300, payout, one, false, ResultWin, 100, false},
		{"lower total loses", hand("10", "8"), hand("10", "9"), 100, 300, payout, one, false, ResultLoss, -100, false},
		{"equal totals push", hand("10", "8"), hand("9", "9"), 100, 300, payout, one, false, ResultPush, 0, false},
		{"multiplier scales a win", hand("10", "9"), hand("10", "8"), 100, 300, payout, decimal.NewFromInt(2), false, ResultWin, 200, false},
		{"multiplier scales a loss", hand("10", "7"), hand("10", "9"), 100, 300, payout, decimal.RequireFromString("1.5"), false, ResultLoss, -150, false},
		{"boosted blackjack is scaled twice", hand("A", "K"), hand("9", "7"), 100, 300, payout, decimal.RequireFromString("1.5"), false, ResultWin, 338, false},
		{"high stakes blackjack is scaled twice", hand("A", "K"), hand("9", "7"), 100, 300, payout, decimal.NewFromInt(2), false, ResultWin, 600, false},
		{"blackjack payout rounds half to even down", hand("A", "K"), hand("10", "8"), 250, 300, decimal.RequireFromString("1.33"), one, false, ResultWin, 332, false},
		{"blackjack payout rounds half to even up", hand("A", "K"), hand("10", "8"), 150, 300, decimal.RequireFromString("1.33"), one, false, ResultWin, 200, false},
		{"safety net halves a ruinous loss", hand("10", "7"), hand("10", "9"), 100, 50, payout, one, true, ResultLoss, -50, true},
		{"safety net truncates odd losses", hand("10", "7"), hand("10", "9"), 75, 10, payout, one, true, ResultLoss, -37, true},
		{"safety net halves before the multiplier", hand("10", "7"), hand("10", "9"), 100, 50, payout, decimal.NewFromInt(2), true, ResultLoss, -100, true},
		{"safety net ignores a loss to exactly zero", hand("10", "7"), hand("10", "9"), 100, 100, payout, one, true, ResultLoss, -100, false},
		{"safety net ignores wins", hand("10", "9"), hand("10", "7"), 100, 0, payout, one, true, ResultWin, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := settle(settlement{
				player:          tt.player,
				dealer:          tt.dealer,
				bet:             tt.bet,
				balance:         tt.balance,
				blackjackPayout: tt.payout,
				multiplier:      tt.mult,
				safetyNet:       tt.safetyNet,
			})
			if out.Result != tt.want {
				t.Errorf("result = %s, want %s", out.Result, tt.want)
			}
			if out.Reward != tt.reward {
				t.Errorf("reward = %d, want %d", out.Reward, tt.reward)
			}
			if out.SafetyNet != tt.netUsed {
				t.Errorf("safety net used = %v, want %v", out.SafetyNet, tt.netUsed)
			}
			if out.BalanceAfter != tt.balance+out.Reward {
				t.Errorf("balance after = %d, want %d", out.BalanceAfter, tt.balance+out.Reward)
			}
			switch out.Result {
			case ResultWin:
				if out.Reward <= 0 {
					t.Errorf("win with reward %d", out.Reward)
				}
			case ResultLoss:
				if out.Reward >= 0 {
					t.Errorf("loss with reward %d", out.Reward)
				}
			case ResultPush:
				if out.Reward != 0 {
					t.Errorf("push with reward %d", out.Reward)
				}
			}
		})
	}
}

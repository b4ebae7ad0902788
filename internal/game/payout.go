package game

import (
	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/shopspring/decimal"
)

// Result is the settled outcome of a round from the player's side.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultPush Result = "push"
)

// Outcome is everything resolution decided about a round.
type Outcome struct {
	Result          Result          `json:"result"`
	PlayerValue     int             `json:"player_value"`
	DealerValue     int             `json:"dealer_value"`
	PlayerBlackjack bool            `json:"player_blackjack"`
	DealerBlackjack bool            `json:"dealer_blackjack"`
	Bet             int             `json:"bet"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	SafetyNet       bool            `json:"safety_net"`
	Reward          int             `json:"reward"`
	BalanceAfter    int             `json:"balance_after"`
}

// settlement is the input to settle.
type settlement struct {
	player, dealer  []cards.Card
	bet             int
	balance         int
	blackjackPayout decimal.Decimal
	multiplier      decimal.Decimal
	safetyNet       bool
}

// settle applies outcome precedence and reward scaling:
//
//  1. player blackjack, dealer not: win bet x blackjack payout
//  2. dealer blackjack, player not: lose bet
//  3. player bust: lose bet
//  4. dealer bust: win bet
//  5. higher total wins bet, equal totals push
//
// A blackjack win is already scaled by the multiplier when its base is
// computed. Safety Net halves a loss that would take the balance below zero,
// before the multiplier. The multiplier then scales the reward whatever its
// sign, so a boosted blackjack is scaled twice.
func settle(in settlement) Outcome {
	pv := cards.HandValue(in.player)
	dv := cards.HandValue(in.dealer)
	pBJ := cards.IsBlackjack(in.player)
	dBJ := cards.IsBlackjack(in.dealer)

	out := Outcome{
		PlayerValue:     pv,
		DealerValue:     dv,
		PlayerBlackjack: pBJ,
		DealerBlackjack: dBJ,
		Bet:             in.bet,
		Multiplier:      in.multiplier,
	}

	var reward int
	switch {
	case pBJ && !dBJ:
		out.Result = ResultWin
		reward = roundUnits(decimal.NewFromInt(int64(in.bet)).Mul(in.blackjackPayout).Mul(in.multiplier))
	case dBJ && !pBJ:
		out.Result = ResultLoss
		reward = -in.bet
	case pv > 21:
		out.Result = ResultLoss
		reward = -in.bet
	case dv > 21:
		out.Result = ResultWin
		reward = in.bet
	case pv > dv:
		out.Result = ResultWin
		reward = in.bet
	case pv < dv:
		out.Result = ResultLoss
		reward = -in.bet
	default:
		out.Result = ResultPush
	}

	if in.safetyNet && out.Result == ResultLoss && in.balance+reward < 0 {
		reward /= 2
		out.SafetyNet = true
	}

	out.Reward = roundUnits(decimal.NewFromInt(int64(reward)).Mul(in.multiplier))
	out.BalanceAfter = in.balance + out.Reward
	return out
}

// roundUnits rounds half to even onto whole currency units.
func roundUnits(d decimal.Decimal) int {
	return int(d.RoundBank(0).IntPart())
}

// Package cards holds playing cards, the multi-deck shoe and blackjack hand
// scoring.
package cards

import "fmt"

// Card is an immutable playing card with its blackjack value resolved at
// construction time.
type Card struct {
	Rank  string `json:"rank"`
	Suit  string `json:"suit"`
	Value int    `json:"value"`
}

// Ranks in order: 2-10, J, Q, K, A.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Suits in shoe build order.
var Suits = []string{"hearts", "spades", "diamonds", "clubs"}

var suitSymbols = map[string]string{
	"hearts": "♥", "spades": "♠", "diamonds": "♦", "clubs": "♣",
}

// NewCard builds a card. It panics on a rank or suit outside Ranks/Suits,
// which can only come from a programming error.
func NewCard(rank, suit string) Card {
	if _, ok := suitSymbols[suit]; !ok {
		panic(fmt.Sprintf("cards: unknown suit %q", suit))
	}
	v := rankValue(rank)
	if v == 0 {
		panic(fmt.Sprintf("cards: unknown rank %q", rank))
	}
	return Card{Rank: rank, Suit: suit, Value: v}
}

// IsAce reports whether the card is an ace.
func (c Card) IsAce() bool { return c.Rank == "A" }

// String returns a representation like "♠A" or "♦10".
func (c Card) String() string {
	return suitSymbols[c.Suit] + c.Rank
}

// rankValue returns the blackjack point value of a rank.
// 2-10: face value, J/Q/K: 10, A: 11 (soft)
func rankValue(rank string) int {
	switch rank {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	case "7":
		return 7
	case "8":
		return 8
	case "9":
		return 9
	default:
		return 0
	}
}

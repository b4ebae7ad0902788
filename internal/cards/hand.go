package cards

// HandValue returns the best blackjack total for cards. Aces count 11 and are
// reduced to 1, one at a time, while the total exceeds 21. A hand that cannot
// avoid busting returns its lowest total.
func HandValue(cards []Card) int {
	total, _ := handTotals(cards)
	return total
}

// IsSoft reports whether an ace in the hand still counts as 11.
func IsSoft(cards []Card) bool {
	_, soft := handTotals(cards)
	return soft > 0
}

// IsBlackjack reports a two-card 21.
func IsBlackjack(cards []Card) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

// IsBust reports a total over 21.
func IsBust(cards []Card) bool {
	return HandValue(cards) > 21
}

func handTotals(cards []Card) (total, softAces int) {
	for _, c := range cards {
		total += c.Value
		if c.IsAce() {
			softAces++
		}
	}
	for total > 21 && softAces > 0 {
		total -= 10
		softAces--
	}
	return total, softAces
}
